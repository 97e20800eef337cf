package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrStatusChanged условный апдейт не прошёл: статус уже не тот, что ожидался
	ErrStatusChanged = errors.New("session status changed concurrently")
	// ErrNotFound запись не найдена (или мягко удалена)
	ErrNotFound = errors.New("record not found")
)

// SessionFilter фильтр выборки занятий. Мягко удалённые записи не попадают никогда.
type SessionFilter struct {
	IDs        []uuid.UUID
	TeacherID  *uuid.UUID
	ProgramID  *uuid.UUID
	ProgramIDs []uuid.UUID
	SubjectID  *uuid.UUID
	Statuses   []model.SessionStatus
	From       time.Time // start_time >= From
	To         time.Time // start_time < To
	Unassigned bool      // только занятия без учителя
	ExcludeID  *uuid.UUID
	Limit      int
	Offset     int
}

// Match проверяет занятие на соответствие фильтру (без Limit/Offset)
func (f SessionFilter) Match(s *model.Session) bool {
	if s.DeletedAt != nil {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, s.ID) {
		return false
	}
	if f.TeacherID != nil && !s.IsAssignedTo(*f.TeacherID) {
		return false
	}
	if f.ProgramID != nil && s.ProgramID() != *f.ProgramID {
		return false
	}
	if len(f.ProgramIDs) > 0 && !slices.Contains(f.ProgramIDs, s.ProgramID()) {
		return false
	}
	if f.SubjectID != nil && !s.HasSubject(*f.SubjectID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, s.Status) {
		return false
	}
	if !f.From.IsZero() && s.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.StartTime.Before(f.To) {
		return false
	}
	if f.Unassigned && s.TeacherID != nil {
		return false
	}
	if f.ExcludeID != nil && s.ID == *f.ExcludeID {
		return false
	}
	return true
}

// SessionReader чтение занятий внутри защищённой транзакции
type SessionReader interface {
	List(ctx context.Context, filter SessionFilter) ([]*model.Session, error)
	Count(ctx context.Context, filter SessionFilter) (int, error)
}

// Guard сериализует запись по ключам и перепроверяет инварианты
// на зафиксированном состоянии в той же транзакции.
type Guard struct {
	Keys  []string
	Check func(ctx context.Context, r SessionReader) error
}

// SortedKeys возвращает уникальные ключи в стабильном порядке, чтобы не было дедлоков
func (g *Guard) SortedKeys() []string {
	if g == nil {
		return nil
	}
	keys := slices.Clone(g.Keys)
	slices.Sort(keys)
	return slices.Compact(keys)
}

// TeacherDayKey ключ блокировки дня учителя
func TeacherDayKey(teacherID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("teacher:%s:%s", teacherID, day.Format(time.DateOnly))
}

// ProgramDayKey ключ блокировки дня программы
func ProgramDayKey(programID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("program:%s:%s", programID, day.Format(time.DateOnly))
}

// StudentDayKey ключ блокировки дня студента, общий для всех его программ
func StudentDayKey(studentID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("student:%s:%s", studentID, day.Format(time.DateOnly))
}
