package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/google/uuid"
)

func windowOf(s *model.Session) availability.Window {
	return availability.Window{Start: s.StartTime, End: s.EndTime}
}

func windowsOf(sessions []*model.Session) []availability.Window {
	out := make([]availability.Window, len(sessions))
	for i, s := range sessions {
		out[i] = windowOf(s)
	}
	return out
}

// committedCount считает занятия учителя за день, которые расходуют лимит.
// Всегда пересчитывается из хранилища, счётчиков нет.
func committedCount(ctx context.Context, r repository.SessionReader, teacherID uuid.UUID, day availability.Window, exclude *uuid.UUID) (int, error) {
	n, err := r.Count(ctx, repository.SessionFilter{
		TeacherID: &teacherID,
		Statuses:  model.CommittedStatuses,
		From:      day.Start,
		To:        day.End,
		ExcludeID: exclude,
	})
	if err != nil {
		return 0, fmt.Errorf("count committed sessions: %w", err)
	}
	return n, nil
}

// teacherSessions активные занятия, на которые учитель уже назначен
func teacherSessions(ctx context.Context, r repository.SessionReader, teacherID uuid.UUID, day availability.Window, exclude *uuid.UUID) ([]*model.Session, error) {
	sessions, err := r.List(ctx, repository.SessionFilter{
		TeacherID: &teacherID,
		Statuses:  model.ActiveStatuses,
		From:      day.Start,
		To:        day.End,
		ExcludeID: exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("list teacher sessions: %w", err)
	}
	return sessions, nil
}

// teacherBusy всё, что может занять учителя в этот день: его активные занятия
// плюс неназначенные запросы по тому же предмету в программах, где он ведёт этот предмет.
func teacherBusy(ctx context.Context, r repository.SessionReader, teacherID, subjectID uuid.UUID, programIDs []uuid.UUID, day availability.Window, exclude *uuid.UUID) ([]*model.Session, error) {
	busy, err := teacherSessions(ctx, r, teacherID, day, exclude)
	if err != nil {
		return nil, err
	}

	if subjectID == uuid.Nil || len(programIDs) == 0 {
		return busy, nil
	}

	pending, err := r.List(ctx, repository.SessionFilter{
		ProgramIDs: programIDs,
		SubjectID:  &subjectID,
		Statuses:   []model.SessionStatus{model.SessionStatusRequested},
		Unassigned: true,
		From:       day.Start,
		To:         day.End,
		ExcludeID:  exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	return append(busy, pending...), nil
}

// servingPrograms программы, где учитель ведёт предмет
func servingPrograms(ctx context.Context, programs ProgramStore, teacherID, subjectID uuid.UUID) ([]uuid.UUID, error) {
	list, err := programs.GetByTeacherID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher programs: %w", err)
	}

	var ids []uuid.UUID
	for _, p := range list {
		if p.TeachesSubject(teacherID, subjectID) {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

// dayScope программы, чьи занятия попадают в день одного студента.
// Для программы без студентов studentID == uuid.Nil и в наборе только она сама.
type dayScope struct {
	studentID  uuid.UUID
	programIDs []uuid.UUID
}

// studentScopes для каждого студента программы собирает все программы, где он учится:
// лимиты студента общие для FocusOne и когорт.
func studentScopes(ctx context.Context, programs ProgramStore, program *model.Program) ([]dayScope, error) {
	if len(program.StudentIDs) == 0 {
		return []dayScope{{programIDs: []uuid.UUID{program.ID}}}, nil
	}

	scopes := make([]dayScope, 0, len(program.StudentIDs))
	for _, studentID := range program.StudentIDs {
		list, err := programs.GetByStudentID(ctx, studentID)
		if err != nil {
			return nil, fmt.Errorf("get student programs: %w", err)
		}
		ids := []uuid.UUID{program.ID}
		for _, p := range list {
			if !slices.Contains(ids, p.ID) {
				ids = append(ids, p.ID)
			}
		}
		scopes = append(scopes, dayScope{studentID: studentID, programIDs: ids})
	}
	return scopes, nil
}

// studentDayKeys блокировки дня программы и каждого её студента
func studentDayKeys(programID uuid.UUID, scopes []dayScope, day time.Time) []string {
	keys := []string{repository.ProgramDayKey(programID, day)}
	for _, sc := range scopes {
		if sc.studentID != uuid.Nil {
			keys = append(keys, repository.StudentDayKey(sc.studentID, day))
		}
	}
	return keys
}

// checkStudentsDay одно активное занятие на предмет в день и дневной лимит,
// для каждого студента по всем его программам
func checkStudentsDay(ctx context.Context, r repository.SessionReader, scopes []dayScope, subjectID uuid.UUID, day availability.Window, exclude *uuid.UUID, maxPerDay int) error {
	for _, sc := range scopes {
		active, err := r.List(ctx, repository.SessionFilter{
			ProgramIDs: sc.programIDs,
			Statuses:   model.ActiveStatuses,
			From:       day.Start,
			To:         day.End,
			ExcludeID:  exclude,
		})
		if err != nil {
			return fmt.Errorf("list student sessions: %w", err)
		}

		if subjectID != uuid.Nil {
			for _, s := range active {
				if s.HasSubject(subjectID) {
					return conflictf("an active session for this subject already exists on %s", day.Start.Format(time.DateOnly))
				}
			}
		}

		if maxPerDay > 0 && len(active) >= maxPerDay {
			return conflictf("daily limit of %d sessions per student reached", maxPerDay)
		}
	}

	return nil
}

// checkTeacherFits лимит учителя и пересечения с его занятиями
func checkTeacherFits(ctx context.Context, r repository.SessionReader, capacity *CapacityEnforcer, rules availability.Rules, teacherID uuid.UUID, window availability.Window, exclude *uuid.UUID) error {
	if err := capacity.Check(ctx, r, teacherID, window.Start, exclude); err != nil {
		return err
	}

	own, err := teacherSessions(ctx, r, teacherID, rules.DayBounds(window.Start), exclude)
	if err != nil {
		return err
	}
	existing := windowsOf(own)
	if other, ok := availability.FirstConflict(window, existing, rules.Buffer); ok {
		return conflictf("time overlaps another session %s (a %s break is required)", other, rules.Buffer)
	}
	if availability.Conflicts(window, existing, rules) {
		return conflictf("teacher needs a %s rest after back-to-back sessions", rules.Blackout)
	}

	return nil
}
