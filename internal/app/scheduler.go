package app

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/notify"
	"go.uber.org/zap"
)

// Flusher разбирает очередь уведомлений
type Flusher interface {
	Flush(ctx context.Context) (notify.FlushResult, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	outbox   Flusher
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(outbox Flusher, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		outbox:   outbox,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("outbox_interval", s.interval))

	// Запускаем рассылку уведомлений
	go s.runOutboxTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт завершения текущего прохода
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	<-s.done
}

// runOutboxTask периодически отправляет накопившиеся уведомления
func (s *Scheduler) runOutboxTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.flushOutbox(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flushOutbox(ctx)
		case <-s.stopChan:
			s.logger.Info("Outbox task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Outbox task cancelled")
			return
		}
	}
}

func (s *Scheduler) flushOutbox(ctx context.Context) {
	res, err := s.outbox.Flush(ctx)
	if err != nil {
		s.logger.Error("Failed to flush outbox", zap.Error(err))
	}
	if res.Sent+res.Failed+res.Dead > 0 {
		s.logger.Debug("Outbox flushed",
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
			zap.Int("dead", res.Dead))
	}
}
