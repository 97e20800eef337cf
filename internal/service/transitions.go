package service

import (
	"context"
	"slices"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AcceptInput необязательные правки при принятии запроса
type AcceptInput struct {
	Title       *string
	Description *string
}

// RescheduleInput новое окно занятия
type RescheduleInput struct {
	Start time.Time
	End   time.Time
}

// Accept учитель принимает запрос. Если после этого день учителя заполнен,
// остальные запросы к нему на этот день отклоняются автоматически.
func (s *BookingService) Accept(ctx context.Context, actorID, sessionID uuid.UUID, in AcceptInput) (*model.Session, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	program, err := s.loadProgram(ctx, session.ProgramID())
	if err != nil {
		return nil, err
	}

	if !canDecide(actor, session, program) {
		return nil, forbiddenf("teacher is not assigned to this subject in the program")
	}
	if !isAllowedTransition(session.Status, model.SessionStatusScheduled) {
		return nil, conflictf("session is %s, only requested sessions can be accepted", session.Status)
	}

	previous := session.Status
	now := s.now()
	session.TeacherID = &actor.ID
	session.Status = model.SessionStatusScheduled
	session.AcceptedBy = &actor.ID
	session.AcceptedAt = &now
	if in.Title != nil && *in.Title != "" {
		session.Title = *in.Title
	}
	if in.Description != nil {
		session.Description = *in.Description
	}

	window := windowOf(session)
	check := func(ctx context.Context, r repository.SessionReader) error {
		return checkTeacherFits(ctx, r, s.capacity, s.rules, actor.ID, window, &session.ID)
	}

	// Предварительная проверка без блокировок: встречу заводим только под
	// занятие, которое может пройти. Окончательная проверка в guard.
	if err := check(ctx, s.sessions); err != nil {
		return nil, err
	}

	// Ссылку получаем до сохранения: без неё переход не фиксируем
	link, err := s.meetingLink(ctx, session, program, actor.ID)
	if err != nil {
		return nil, err
	}
	session.MeetingLink = link

	guard := &repository.Guard{
		Keys:  []string{repository.TeacherDayKey(actor.ID, s.rules.DayOf(window.Start))},
		Check: check,
	}

	entry := model.HistoryEntry{
		Action:         model.HistoryActionAccepted,
		PerformedBy:    &actor.ID,
		PerformedAt:    now,
		PreviousStatus: previous,
		NewStatus:      session.Status,
	}
	if err := s.sessions.Transition(ctx, session, previous, entry, guard); err != nil {
		return nil, s.storeError("accept session", err)
	}

	s.logger.Info("Session accepted",
		zap.String("session_id", session.ID.String()),
		zap.String("teacher_id", actor.ID.String()),
		zap.Time("start", session.StartTime),
	)

	s.notifyUsers(ctx, studentSide(session, program), model.TemplateSessionAccepted, session, nil)

	s.autoRejectIfSaturated(ctx, actor.ID, session.StartTime)

	return session, nil
}

// Reject учитель отклоняет запрос с причиной
func (s *BookingService) Reject(ctx context.Context, actorID, sessionID uuid.UUID, reason string) (*model.Session, error) {
	reason = trimReason(reason)
	if reason == "" {
		return nil, validationf("rejection reason is required")
	}

	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	program, err := s.loadProgram(ctx, session.ProgramID())
	if err != nil {
		return nil, err
	}

	if !canDecide(actor, session, program) {
		return nil, forbiddenf("teacher is not assigned to this subject in the program")
	}
	if !isAllowedTransition(session.Status, model.SessionStatusRejected) {
		return nil, conflictf("session is %s, only requested sessions can be rejected", session.Status)
	}

	previous := session.Status
	now := s.now()
	session.Status = model.SessionStatusRejected
	session.RejectedBy = &actor.ID
	session.RejectedAt = &now
	session.RejectionReason = reason

	entry := model.HistoryEntry{
		Action:         model.HistoryActionRejected,
		PerformedBy:    &actor.ID,
		PerformedAt:    now,
		PreviousStatus: previous,
		NewStatus:      session.Status,
		Notes:          reason,
	}
	if err := s.sessions.Transition(ctx, session, previous, entry, nil); err != nil {
		return nil, s.storeError("reject session", err)
	}

	s.logger.Info("Session rejected",
		zap.String("session_id", session.ID.String()),
		zap.String("teacher_id", actor.ID.String()),
	)

	s.notifyUsers(ctx, studentSide(session, program), model.TemplateSessionRejected, session,
		map[string]string{"reason": reason})

	return session, nil
}

// Cancel отменяет активное занятие. Место у учителя освобождается сразу:
// лимит всегда пересчитывается по занятиям.
func (s *BookingService) Cancel(ctx context.Context, actorID, sessionID uuid.UUID, reason string) (*model.Session, error) {
	reason = trimReason(reason)
	if reason == "" {
		return nil, validationf("cancellation reason is required")
	}

	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	program, err := s.loadProgram(ctx, session.ProgramID())
	if err != nil {
		return nil, err
	}

	if !canCancel(actor, session, program) {
		return nil, forbiddenf("you are not a participant of this session")
	}
	if !isAllowedTransition(session.Status, model.SessionStatusCancelled) {
		return nil, conflictf("session is %s and can no longer be cancelled", session.Status)
	}

	previous := session.Status
	now := s.now()
	session.Status = model.SessionStatusCancelled
	session.CancelledBy = &actor.ID
	session.CancelledAt = &now
	session.CancellationReason = reason

	entry := model.HistoryEntry{
		Action:         model.HistoryActionCancelled,
		PerformedBy:    &actor.ID,
		PerformedAt:    now,
		PreviousStatus: previous,
		NewStatus:      session.Status,
		Notes:          reason,
	}
	if err := s.sessions.Transition(ctx, session, previous, entry, nil); err != nil {
		return nil, s.storeError("cancel session", err)
	}

	s.logger.Info("Session cancelled",
		zap.String("session_id", session.ID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.String("previous_status", string(previous)),
	)

	recipients := studentSide(session, program)
	if session.TeacherID != nil {
		recipients = append(recipients, *session.TeacherID)
	}
	s.notifyUsers(ctx, exceptActor(recipients, actor.ID), model.TemplateSessionCancelled, session,
		map[string]string{"reason": reason})

	return session, nil
}

// Reschedule переносит запрошенное или запланированное занятие на новое окно.
// Старое окно самого занятия при проверках не учитывается.
func (s *BookingService) Reschedule(ctx context.Context, actorID, sessionID uuid.UUID, in RescheduleInput) (*model.Session, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	program, err := s.loadProgram(ctx, session.ProgramID())
	if err != nil {
		return nil, err
	}

	if !isParticipant(actor, session, program) {
		return nil, forbiddenf("you are not a participant of this session")
	}
	if session.Status != model.SessionStatusRequested && session.Status != model.SessionStatusScheduled {
		return nil, conflictf("session is %s and can no longer be rescheduled", session.Status)
	}

	window := availability.Window{Start: in.Start, End: in.End}
	if err := s.validateWindow(window); err != nil {
		return nil, err
	}
	if window.Equal(windowOf(session)) {
		return nil, validationf("new time is the same as the current one")
	}

	scopes, err := studentScopes(ctx, s.programs, program)
	if err != nil {
		return nil, err
	}

	subjectID := session.SubjectOrNil()
	day := s.rules.DayOf(window.Start)
	keys := studentDayKeys(program.ID, scopes, day)

	var teachers []uuid.UUID
	serving := map[uuid.UUID][]uuid.UUID{}
	if session.TeacherID != nil {
		keys = append(keys, repository.TeacherDayKey(*session.TeacherID, day))
	} else {
		teachers = program.TeachersFor(subjectID)
		for _, t := range teachers {
			ids, err := servingPrograms(ctx, s.programs, t, subjectID)
			if err != nil {
				return nil, err
			}
			serving[t] = ids
			keys = append(keys, repository.TeacherDayKey(t, day))
		}
	}

	guard := &repository.Guard{
		Keys: keys,
		Check: func(ctx context.Context, r repository.SessionReader) error {
			if err := checkStudentsDay(ctx, r, scopes, subjectID, s.rules.DayBounds(day), &session.ID, s.rules.MaxStudentPerDay); err != nil {
				return err
			}
			if session.TeacherID != nil {
				return checkTeacherFits(ctx, r, s.capacity, s.rules, *session.TeacherID, window, &session.ID)
			}
			free, err := s.freeTeachers(ctx, r, teachers, serving, subjectID, window, &session.ID)
			if err != nil {
				return err
			}
			if len(free) == 0 {
				return conflictf("no teacher is available at %s", window)
			}
			return nil
		},
	}

	old := windowOf(session)
	now := s.now()
	session.StartTime = window.Start
	session.EndTime = window.End

	entry := model.HistoryEntry{
		Action:         model.HistoryActionRescheduled,
		PerformedBy:    &actor.ID,
		PerformedAt:    now,
		PreviousStatus: session.Status,
		NewStatus:      session.Status,
		ChangedFields: map[string]model.FieldChange{
			"start_time": {From: old.Start, To: window.Start},
			"end_time":   {From: old.End, To: window.End},
		},
	}
	if err := s.sessions.Transition(ctx, session, session.Status, entry, guard); err != nil {
		return nil, s.storeError("reschedule session", err)
	}

	s.logger.Info("Session rescheduled",
		zap.String("session_id", session.ID.String()),
		zap.Time("old_start", old.Start),
		zap.Time("new_start", window.Start),
		zap.String("actor_id", actor.ID.String()),
	)

	recipients := studentSide(session, program)
	if session.TeacherID != nil {
		recipients = append(recipients, *session.TeacherID)
	}
	s.notifyUsers(ctx, exceptActor(recipients, actor.ID), model.TemplateSessionRescheduled, session,
		map[string]string{"old_start": old.Start.In(s.rules.Location).Format("02.01.2006 15:04")})

	if session.TeacherID != nil && session.Status.IsCommitted() {
		s.autoRejectIfSaturated(ctx, *session.TeacherID, session.StartTime)
	}

	return session, nil
}

// Start переводит занятие в ongoing. Допускается за Buffer до начала и до конца окна.
func (s *BookingService) Start(ctx context.Context, actorID, sessionID uuid.UUID) (*model.Session, error) {
	return s.run(ctx, actorID, sessionID, model.SessionStatusScheduled, model.SessionStatusOngoing, model.HistoryActionStarted)
}

// Complete завершает идущее занятие
func (s *BookingService) Complete(ctx context.Context, actorID, sessionID uuid.UUID) (*model.Session, error) {
	return s.run(ctx, actorID, sessionID, model.SessionStatusOngoing, model.SessionStatusCompleted, model.HistoryActionCompleted)
}

func (s *BookingService) run(ctx context.Context, actorID, sessionID uuid.UUID, from, to model.SessionStatus, action model.HistoryAction) (*model.Session, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !canRun(actor, session) {
		return nil, forbiddenf("only the assigned teacher can run this session")
	}
	if session.Status != from || !isAllowedTransition(from, to) {
		return nil, conflictf("session is %s, expected %s", session.Status, from)
	}

	now := s.now()
	if to == model.SessionStatusOngoing {
		if now.Before(session.StartTime.Add(-s.rules.Buffer)) || !now.Before(session.EndTime) {
			return nil, conflictf("session can only be started around its scheduled time")
		}
	}

	session.Status = to
	entry := model.HistoryEntry{
		Action:         action,
		PerformedBy:    &actor.ID,
		PerformedAt:    now,
		PreviousStatus: from,
		NewStatus:      to,
	}
	if err := s.sessions.Transition(ctx, session, from, entry, nil); err != nil {
		return nil, s.storeError("update session status", err)
	}

	s.logger.Info("Session status changed",
		zap.String("session_id", session.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	return session, nil
}

// isAllowedTransition таблица переходов workflow
func isAllowedTransition(from, to model.SessionStatus) bool {
	return slices.Contains(transitions[from], to)
}

var transitions = map[model.SessionStatus][]model.SessionStatus{
	model.SessionStatusRequested: {model.SessionStatusScheduled, model.SessionStatusRejected, model.SessionStatusCancelled},
	model.SessionStatusScheduled: {model.SessionStatusOngoing, model.SessionStatusCancelled},
	model.SessionStatusOngoing:   {model.SessionStatusCompleted, model.SessionStatusCancelled},
}
