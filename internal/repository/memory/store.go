// Package memory хранилища в памяти процесса с теми же контрактами, что у
// PostgreSQL репозиториев: условные переходы, guard под одной блокировкой,
// мягкое удаление, nil, nil если запись не найдена.
package memory

import (
	"time"
)

// Store набор репозиториев в памяти
type Store struct {
	Sessions      *SessionRepository
	Programs      *ProgramRepository
	Users         *UserRepository
	Subjects      *SubjectRepository
	Notifications *NotificationRepository
}

func New() *Store {
	return &Store{
		Sessions:      NewSessionRepository(),
		Programs:      NewProgramRepository(),
		Users:         NewUserRepository(),
		Subjects:      NewSubjectRepository(),
		Notifications: NewNotificationRepository(),
	}
}

var now = time.Now
