package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// autoRejectIfSaturated если у учителя набран дневной лимит, отклоняет все
// оставшиеся запросы этого дня, которые он мог бы принять.
// Каждое занятие отклоняется отдельно: сбой одного не откатывает остальные.
// Повторный запуск безопасен, уже закрытые запросы пропускаются.
func (s *BookingService) autoRejectIfSaturated(ctx context.Context, teacherID uuid.UUID, at time.Time) []*model.Session {
	day := s.rules.DayBounds(at)

	saturated, err := s.capacity.IsSaturated(ctx, teacherID, at)
	if err != nil {
		s.logger.Error("Failed to count teacher sessions for auto-reject",
			zap.String("teacher_id", teacherID.String()),
			zap.Error(err))
		return nil
	}
	if !saturated {
		return nil
	}

	pending, programs, err := s.pendingFor(ctx, teacherID, day.Start, day.End)
	if err != nil {
		s.logger.Error("Failed to load pending requests for auto-reject",
			zap.String("teacher_id", teacherID.String()),
			zap.Error(err))
		return nil
	}

	var (
		rejected []*model.Session
		errs     error
	)
	for _, p := range pending {
		session, err := s.autoReject(ctx, p.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", p.ID, err))
			continue
		}
		if session != nil {
			rejected = append(rejected, session)
		}
	}

	if errs != nil {
		s.logger.Warn("Auto-reject finished with errors",
			zap.String("teacher_id", teacherID.String()),
			zap.Errors("errors", multierr.Errors(errs)))
	}

	for _, session := range rejected {
		s.notifyUsers(ctx, studentSide(session, programs[session.ProgramID()]),
			model.TemplateSessionAutoRejected, session, map[string]string{"reason": AutoRejectReason})
	}

	if len(rejected) > 0 {
		s.logger.Info("Pending requests auto-rejected",
			zap.String("teacher_id", teacherID.String()),
			zap.Time("day", day.Start),
			zap.Int("count", len(rejected)))
	}

	return rejected
}

// pendingFor неназначенные запросы дня, которые учитель ведёт по назначению
func (s *BookingService) pendingFor(ctx context.Context, teacherID uuid.UUID, from, to time.Time) ([]*model.Session, map[uuid.UUID]*model.Program, error) {
	list, err := s.programs.GetByTeacherID(ctx, teacherID)
	if err != nil {
		return nil, nil, fmt.Errorf("get teacher programs: %w", err)
	}
	if len(list) == 0 {
		return nil, nil, nil
	}

	programs := make(map[uuid.UUID]*model.Program, len(list))
	ids := make([]uuid.UUID, 0, len(list))
	for _, p := range list {
		programs[p.ID] = p
		ids = append(ids, p.ID)
	}

	requested, err := s.sessions.List(ctx, repository.SessionFilter{
		ProgramIDs: ids,
		Statuses:   []model.SessionStatus{model.SessionStatusRequested},
		Unassigned: true,
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("list pending requests: %w", err)
	}

	var out []*model.Session
	for _, session := range requested {
		p := programs[session.ProgramID()]
		if p != nil && p.TeachesSubject(teacherID, session.SubjectOrNil()) {
			out = append(out, session)
		}
	}
	return out, programs, nil
}

// autoReject закрывает один запрос. nil, nil если его уже приняли, отклонили или удалили.
func (s *BookingService) autoReject(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	var result *model.Session

	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		session, err := s.sessions.GetByID(ctx, id)
		if err != nil {
			return retry.RetryableError(err)
		}
		if session == nil || session.Status != model.SessionStatusRequested {
			return nil
		}

		now := s.now()
		session.Status = model.SessionStatusRejected
		session.RejectedAt = &now
		session.RejectionReason = AutoRejectReason

		entry := model.HistoryEntry{
			Action:         model.HistoryActionAutoReject,
			PerformedAt:    now,
			PreviousStatus: model.SessionStatusRequested,
			NewStatus:      model.SessionStatusRejected,
			Notes:          AutoRejectReason,
		}

		err = s.sessions.Transition(ctx, session, model.SessionStatusRequested, entry, nil)
		switch {
		case errors.Is(err, repository.ErrStatusChanged), errors.Is(err, repository.ErrNotFound):
			return nil
		case err != nil:
			return retry.RetryableError(err)
		}

		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
