package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed" // исчерпаны попытки
)

// Ключи шаблонов уведомлений
const (
	TemplateSessionRequested    = "session_requested"
	TemplateSessionScheduled    = "session_scheduled"
	TemplateSessionAccepted     = "session_accepted"
	TemplateSessionRejected     = "session_rejected"
	TemplateSessionAutoRejected = "session_auto_rejected"
	TemplateSessionCancelled    = "session_cancelled"
	TemplateSessionRescheduled  = "session_rescheduled"
)

// Notification запись outbox: уведомление ждёт отправки фоновым воркером
type Notification struct {
	ID          uuid.UUID          `json:"id"`
	RecipientID uuid.UUID          `json:"recipient_id"`
	Email       string             `json:"email"`
	TemplateKey string             `json:"template_key"`
	Payload     map[string]string  `json:"payload"`
	Status      NotificationStatus `json:"status"`
	Attempts    int                `json:"attempts"`
	LastError   string             `json:"last_error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	SentAt      *time.Time         `json:"sent_at,omitempty"`
}
