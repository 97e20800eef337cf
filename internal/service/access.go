package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/google/uuid"
)

func (s *BookingService) loadActor(ctx context.Context, actorID uuid.UUID) (*model.User, error) {
	if actorID == uuid.Nil {
		return nil, forbiddenf("actor is required")
	}
	user, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}
	if user == nil {
		return nil, forbiddenf("unknown user %s", actorID)
	}
	return user, nil
}

func (s *BookingService) loadSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, notFoundf("session %s not found", id)
	}
	return session, nil
}

func (s *BookingService) loadProgram(ctx context.Context, id uuid.UUID) (*model.Program, error) {
	program, err := s.programs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	if program == nil {
		return nil, notFoundf("program %s not found", id)
	}
	return program, nil
}

func (s *BookingService) loadSubject(ctx context.Context, id uuid.UUID) (*model.Subject, error) {
	subject, err := s.subjects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	if subject == nil {
		return nil, notFoundf("subject %s not found", id)
	}
	return subject, nil
}

// isParticipant студент программы, назначенный учитель или администратор
func isParticipant(actor *model.User, session *model.Session, program *model.Program) bool {
	switch {
	case actor.IsAdmin():
		return true
	case session.IsAssignedTo(actor.ID):
		return true
	case program != nil && program.HasStudent(actor.ID):
		return true
	}
	return false
}

// canDecide учитель может принять или отклонить запрос
func canDecide(actor *model.User, session *model.Session, program *model.Program) bool {
	return actor.IsTeacher() && program.TeachesSubject(actor.ID, session.SubjectOrNil())
}

// canCancel участники занятия плюс любой подходящий учитель для неназначенного запроса
func canCancel(actor *model.User, session *model.Session, program *model.Program) bool {
	if isParticipant(actor, session, program) {
		return true
	}
	return session.Status == model.SessionStatusRequested &&
		session.TeacherID == nil &&
		canDecide(actor, session, program)
}

// canRun запуск и завершение: назначенный учитель или администратор
func canRun(actor *model.User, session *model.Session) bool {
	return actor.IsAdmin() || session.IsAssignedTo(actor.ID)
}
