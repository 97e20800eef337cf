package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/google/uuid"
)

type NotificationRepository struct {
	mu    sync.Mutex
	items []*model.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Enqueue(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.Status = model.NotificationStatusPending
	n.CreatedAt = now()
	r.items = append(r.items, cloneNotification(n))
	return nil
}

func (r *NotificationRepository) Pending(_ context.Context, limit int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Notification
	for _, n := range r.items {
		if n.Status != model.NotificationStatusPending {
			continue
		}
		out = append(out, cloneNotification(n))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *NotificationRepository) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.find(id)
	if n == nil {
		return repository.ErrNotFound
	}
	n.Status = model.NotificationStatusSent
	n.SentAt = &at
	n.Attempts++
	return nil
}

func (r *NotificationRepository) MarkFailed(_ context.Context, id uuid.UUID, lastError string, dead bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.find(id)
	if n == nil {
		return repository.ErrNotFound
	}
	n.Attempts++
	n.LastError = lastError
	if dead {
		n.Status = model.NotificationStatusFailed
	}
	return nil
}

// All возвращает копию всей очереди
func (r *NotificationRepository) All() []*model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.Notification, len(r.items))
	for i, n := range r.items {
		out[i] = cloneNotification(n)
	}
	return out
}

func (r *NotificationRepository) find(id uuid.UUID) *model.Notification {
	i := slices.IndexFunc(r.items, func(n *model.Notification) bool { return n.ID == id })
	if i < 0 {
		return nil
	}
	return r.items[i]
}

func cloneNotification(n *model.Notification) *model.Notification {
	c := *n
	c.Payload = maps.Clone(n.Payload)
	return &c
}
