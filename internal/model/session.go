package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusRequested SessionStatus = "requested" // Ожидает принятия учителем
	SessionStatusScheduled SessionStatus = "scheduled" // Учитель назначен, занятие запланировано
	SessionStatusRejected  SessionStatus = "rejected"  // Отклонено учителем или системой
	SessionStatusOngoing   SessionStatus = "ongoing"   // Идёт прямо сейчас
	SessionStatusCompleted SessionStatus = "completed" // Завершено
	SessionStatusCancelled SessionStatus = "cancelled" // Отменено студентом или учителем
)

// ActiveStatuses статусы, которые занимают время учителя или студента
var ActiveStatuses = []SessionStatus{
	SessionStatusRequested,
	SessionStatusScheduled,
	SessionStatusOngoing,
}

// CommittedStatuses статусы, которые расходуют дневной лимит учителя
var CommittedStatuses = []SessionStatus{
	SessionStatusScheduled,
	SessionStatusOngoing,
}

// IsActive проверяет что занятие ещё не в терминальном состоянии
func (s SessionStatus) IsActive() bool {
	return s == SessionStatusRequested || s == SessionStatusScheduled || s == SessionStatusOngoing
}

// IsCommitted проверяет что занятие расходует лимит учителя
func (s SessionStatus) IsCommitted() bool {
	return s == SessionStatusScheduled || s == SessionStatusOngoing
}

// IsTerminal проверяет что из статуса больше нет переходов
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled || s == SessionStatusRejected
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusRequested, SessionStatusScheduled, SessionStatusRejected,
		SessionStatusOngoing, SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

type Session struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`

	// Ровно одно из двух: индивидуальная программа или группа
	FocusOneProgramID *uuid.UUID `json:"focus_one_program_id,omitempty"`
	CohortID          *uuid.UUID `json:"cohort_id,omitempty"`

	SubjectID *uuid.UUID    `json:"subject_id,omitempty"`
	TeacherID *uuid.UUID    `json:"teacher_id,omitempty"` // nil до назначения учителя
	Status    SessionStatus `json:"status"`

	RequestedBy        *uuid.UUID `json:"requested_by,omitempty"`
	RequestedAt        *time.Time `json:"requested_at,omitempty"`
	AcceptedBy         *uuid.UUID `json:"accepted_by,omitempty"`
	AcceptedAt         *time.Time `json:"accepted_at,omitempty"`
	RejectedBy         *uuid.UUID `json:"rejected_by,omitempty"` // nil для системного отклонения
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`

	MeetingLink string         `json:"meeting_link,omitempty"`
	History     []HistoryEntry `json:"history,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// ProgramID возвращает программу, к которой привязано занятие
func (s *Session) ProgramID() uuid.UUID {
	if s.FocusOneProgramID != nil {
		return *s.FocusOneProgramID
	}
	if s.CohortID != nil {
		return *s.CohortID
	}
	return uuid.Nil
}

// SetProgram привязывает занятие к программе нужного типа
func (s *Session) SetProgram(kind ProgramKind, id uuid.UUID) {
	ref := id
	switch kind {
	case ProgramKindCohort:
		s.CohortID = &ref
		s.FocusOneProgramID = nil
	default:
		s.FocusOneProgramID = &ref
		s.CohortID = nil
	}
}

// IsAssignedTo проверяет что учитель назначен на занятие
func (s *Session) IsAssignedTo(teacherID uuid.UUID) bool {
	return s.TeacherID != nil && *s.TeacherID == teacherID
}

// HasSubject проверяет предмет занятия
func (s *Session) HasSubject(subjectID uuid.UUID) bool {
	return s.SubjectID != nil && *s.SubjectID == subjectID
}

// SubjectOrNil возвращает предмет или uuid.Nil
func (s *Session) SubjectOrNil() uuid.UUID {
	if s.SubjectID == nil {
		return uuid.Nil
	}
	return *s.SubjectID
}

// Clone делает глубокую копию, история копируется целиком
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.FocusOneProgramID = cloneID(s.FocusOneProgramID)
	c.CohortID = cloneID(s.CohortID)
	c.SubjectID = cloneID(s.SubjectID)
	c.TeacherID = cloneID(s.TeacherID)
	c.RequestedBy = cloneID(s.RequestedBy)
	c.AcceptedBy = cloneID(s.AcceptedBy)
	c.RejectedBy = cloneID(s.RejectedBy)
	c.CancelledBy = cloneID(s.CancelledBy)
	c.RequestedAt = cloneTime(s.RequestedAt)
	c.AcceptedAt = cloneTime(s.AcceptedAt)
	c.RejectedAt = cloneTime(s.RejectedAt)
	c.CancelledAt = cloneTime(s.CancelledAt)
	c.DeletedAt = cloneTime(s.DeletedAt)
	if s.History != nil {
		c.History = make([]HistoryEntry, len(s.History))
		for i, h := range s.History {
			c.History[i] = h.Clone()
		}
	}
	return &c
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
