package service

import (
	"context"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/google/uuid"
)

// SessionStore хранилище занятий. GetByID возвращает nil, nil если занятия нет.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session, entry model.HistoryEntry, guard *repository.Guard) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	List(ctx context.Context, filter repository.SessionFilter) ([]*model.Session, error)
	Count(ctx context.Context, filter repository.SessionFilter) (int, error)
	Transition(ctx context.Context, s *model.Session, expected model.SessionStatus, entry model.HistoryEntry, guard *repository.Guard) error
}

type ProgramStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Program, error)
	GetByTeacherID(ctx context.Context, teacherID uuid.UUID) ([]*model.Program, error)
	GetByStudentID(ctx context.Context, studentID uuid.UUID) ([]*model.Program, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
}

type SubjectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Subject, error)
}

// Outbox очередь уведомлений; отправкой занимается фоновый воркер
type Outbox interface {
	Enqueue(ctx context.Context, n *model.Notification) error
}

// MeetingLinker выдаёт ссылку на видеовстречу
type MeetingLinker interface {
	CreateMeetingLink(ctx context.Context, title string, window availability.Window, participants []string) (string, error)
}
