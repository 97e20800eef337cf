package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize   = 50
	DefaultMaxAttempts = 5
	sendConcurrency    = 4
)

// Queue сторона outbox, которую читает рассыльщик
type Queue interface {
	Pending(ctx context.Context, limit int) ([]*model.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string, dead bool) error
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Dispatcher разбирает очередь уведомлений. Неудачная отправка остаётся в очереди
// до MaxAttempts попыток, потом помечается failed.
type Dispatcher struct {
	queue       Queue
	users       UserStore
	sender      Sender
	batchSize   int
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

func NewDispatcher(queue Queue, users UserStore, sender Sender, batchSize, maxAttempts int, logger *zap.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Dispatcher{
		queue:       queue,
		users:       users,
		sender:      sender,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// FlushResult итог одного прохода по очереди
type FlushResult struct {
	Sent   int
	Failed int
	Dead   int
}

// Flush отправляет одну пачку pending уведомлений. Ошибка смены статуса одного
// уведомления не прерывает остальные отправки: такие ошибки собираются вместе
// и возвращаются вместе с итогом прохода.
func (d *Dispatcher) Flush(ctx context.Context) (FlushResult, error) {
	pending, err := d.queue.Pending(ctx, d.batchSize)
	if err != nil {
		return FlushResult{}, fmt.Errorf("get pending notifications: %w", err)
	}
	if len(pending) == 0 {
		return FlushResult{}, nil
	}

	var (
		sent, failed, dead atomic.Int64
		mu                 sync.Mutex
		markErrs           error
	)
	mark := func(id uuid.UUID, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		markErrs = multierr.Append(markErrs, fmt.Errorf("notification %s: %w", id, err))
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(sendConcurrency)
	for _, n := range pending {
		g.Go(func() error {
			sendErr := d.deliver(ctx, n)
			if sendErr == nil {
				sent.Add(1)
				mark(n.ID, d.queue.MarkSent(ctx, n.ID, d.now()))
				return nil
			}

			isDead := errors.Is(sendErr, ErrUndeliverable) || n.Attempts+1 >= d.maxAttempts
			if isDead {
				dead.Add(1)
			} else {
				failed.Add(1)
			}

			d.logger.Warn("Notification delivery failed",
				zap.String("notification_id", n.ID.String()),
				zap.String("recipient_id", n.RecipientID.String()),
				zap.String("template", n.TemplateKey),
				zap.Int("attempt", n.Attempts+1),
				zap.Bool("dead", isDead),
				zap.Error(sendErr))

			mark(n.ID, d.queue.MarkFailed(ctx, n.ID, sendErr.Error(), isDead))
			return nil
		})
	}
	_ = g.Wait()

	res := FlushResult{Sent: int(sent.Load()), Failed: int(failed.Load()), Dead: int(dead.Load())}
	d.logger.Info("Notifications flushed",
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("dead", res.Dead))

	if markErrs != nil {
		return res, fmt.Errorf("update notification status: %w", markErrs)
	}
	return res, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *model.Notification) error {
	recipient, err := d.users.GetByID(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("get recipient: %w", err)
	}
	if recipient == nil {
		return fmt.Errorf("recipient %s: %w", n.RecipientID, ErrUndeliverable)
	}

	text, err := Render(n)
	if err != nil {
		return errors.Join(ErrUndeliverable, err)
	}

	return d.sender.Send(ctx, recipient, text)
}
