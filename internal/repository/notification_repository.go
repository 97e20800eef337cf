package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationRepository outbox уведомлений
type NotificationRepository struct {
	*base.Repository
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{Repository: base.NewRepository(pool)}
}

// Enqueue кладёт уведомление в outbox
func (r *NotificationRepository) Enqueue(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.Status = model.NotificationStatusPending

	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}

	query := `
		INSERT INTO notification_outbox (id, recipient_id, email, template_key, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err = r.QueryRow(
		ctx, query,
		n.ID,
		n.RecipientID,
		n.Email,
		n.TemplateKey,
		payload,
		n.Status,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	return nil
}

// Pending получает ожидающие отправки уведомления, старые первыми
func (r *NotificationRepository) Pending(ctx context.Context, limit int) ([]*model.Notification, error) {
	query := `
		SELECT id, recipient_id, email, template_key, payload, status, attempts, last_error, created_at, sent_at
		FROM notification_outbox
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending notifications: %w", err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		var (
			n       model.Notification
			payload []byte
		)
		err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.Email,
			&n.TemplateKey,
			&payload,
			&n.Status,
			&n.Attempts,
			&n.LastError,
			&n.CreatedAt,
			&n.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &n.Payload); err != nil {
				return nil, fmt.Errorf("decode notification payload: %w", err)
			}
		}
		out = append(out, &n)
	}

	return out, rows.Err()
}

// MarkSent отмечает уведомление отправленным
func (r *NotificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	affected, err := r.ExecAffected(ctx,
		`UPDATE notification_outbox SET status = 'sent', sent_at = $1, attempts = attempts + 1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed фиксирует неудачную попытку. dead=true выводит уведомление из очереди.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string, dead bool) error {
	status := model.NotificationStatusPending
	if dead {
		status = model.NotificationStatusFailed
	}

	affected, err := r.ExecAffected(ctx,
		`UPDATE notification_outbox SET status = $1, last_error = $2, attempts = attempts + 1 WHERE id = $3`,
		status, lastError, id,
	)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
