package app

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_sessions/internal/config"
	"github.com/Freeeeeet/tutor_sessions/internal/notify"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/Freeeeeet/tutor_sessions/internal/repository/memory"
	"github.com/Freeeeeet/tutor_sessions/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Storage набор хранилищ, с которыми работают сервисы
type Storage struct {
	Sessions service.SessionStore
	Programs service.ProgramStore
	Users    interface {
		service.UserStore
		notify.UserStore
	}
	Subjects service.SubjectStore
	Outbox   interface {
		service.Outbox
		notify.Queue
	}

	// Ping проверяет доступность хранилища для health-check
	Ping  func(ctx context.Context) error
	close func()
}

func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStorage подключает PostgreSQL и применяет миграции, либо поднимает хранилище в памяти
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("Using in-memory storage, data is lost on restart")
		store := memory.New()
		return &Storage{
			Sessions: store.Sessions,
			Programs: store.Programs,
			Users:    store.Users,
			Subjects: store.Subjects,
			Outbox:   store.Notifications,
			Ping:     func(context.Context) error { return nil },
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Connected to database")

	migrator, err := NewMigrator(pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Storage{
		Sessions: repository.NewSessionRepository(pool),
		Programs: repository.NewProgramRepository(pool),
		Users:    repository.NewUserRepository(pool),
		Subjects: repository.NewSubjectRepository(pool),
		Outbox:   repository.NewNotificationRepository(pool),
		Ping:     pool.Ping,
		close:    pool.Close,
	}, nil
}
