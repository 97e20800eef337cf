package model

import (
	"time"

	"github.com/google/uuid"
)

type HistoryAction string

const (
	HistoryActionScheduled   HistoryAction = "scheduled"     // создано напрямую администратором или учителем
	HistoryActionRequested   HistoryAction = "requested"     // создано запросом студента
	HistoryActionAccepted    HistoryAction = "accepted"      // учитель принял запрос
	HistoryActionRejected    HistoryAction = "rejected"      // учитель отклонил запрос
	HistoryActionAutoReject  HistoryAction = "auto_rejected" // система отклонила: учитель загружен
	HistoryActionCancelled   HistoryAction = "cancelled"
	HistoryActionRescheduled HistoryAction = "rescheduled"
	HistoryActionStarted     HistoryAction = "started"
	HistoryActionCompleted   HistoryAction = "completed"
)

// FieldChange значение поля до и после изменения
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// HistoryEntry запись аудита. После добавления не изменяется.
type HistoryEntry struct {
	Action         HistoryAction          `json:"action"`
	PerformedBy    *uuid.UUID             `json:"performed_by,omitempty"` // nil = система
	PerformedAt    time.Time              `json:"performed_at"`
	PreviousStatus SessionStatus          `json:"previous_status,omitempty"`
	NewStatus      SessionStatus          `json:"new_status"`
	Notes          string                 `json:"notes,omitempty"`
	ChangedFields  map[string]FieldChange `json:"changed_fields,omitempty"`
}

func (h HistoryEntry) Clone() HistoryEntry {
	c := h
	c.PerformedBy = cloneID(h.PerformedBy)
	if h.ChangedFields != nil {
		c.ChangedFields = make(map[string]FieldChange, len(h.ChangedFields))
		for k, v := range h.ChangedFields {
			c.ChangedFields[k] = v
		}
	}
	return c
}
