package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/google/uuid"
)

// CapacityEnforcer дневной лимит учителя. Значение всегда выводится из занятий:
// отмена или перенос освобождают место без отдельного счётчика.
type CapacityEnforcer struct {
	sessions repository.SessionReader
	rules    availability.Rules
}

func NewCapacityEnforcer(sessions repository.SessionReader, rules availability.Rules) *CapacityEnforcer {
	return &CapacityEnforcer{sessions: sessions, rules: rules}
}

// CommittedCount количество scheduled/ongoing занятий учителя в календарный день date
func (c *CapacityEnforcer) CommittedCount(ctx context.Context, teacherID uuid.UUID, date time.Time) (int, error) {
	return c.CountIn(ctx, c.sessions, teacherID, date, nil)
}

// CountIn то же, но читает через r (внутри транзакции guard) и без занятия exclude
func (c *CapacityEnforcer) CountIn(ctx context.Context, r repository.SessionReader, teacherID uuid.UUID, date time.Time, exclude *uuid.UUID) (int, error) {
	return committedCount(ctx, r, teacherID, c.rules.DayBounds(date), exclude)
}

// IsSaturated учитель набрал дневной максимум
func (c *CapacityEnforcer) IsSaturated(ctx context.Context, teacherID uuid.UUID, date time.Time) (bool, error) {
	n, err := c.CommittedCount(ctx, teacherID, date)
	if err != nil {
		return false, err
	}
	return n >= c.Max(), nil
}

// Check ConflictError, если ещё одно занятие в этот день превысит лимит
func (c *CapacityEnforcer) Check(ctx context.Context, r repository.SessionReader, teacherID uuid.UUID, date time.Time, exclude *uuid.UUID) error {
	n, err := c.CountIn(ctx, r, teacherID, date, exclude)
	if err != nil {
		return err
	}
	if n >= c.Max() {
		return conflictf("teacher already has %d sessions on %s", n, c.rules.DayOf(date).Format(time.DateOnly))
	}
	return nil
}

func (c *CapacityEnforcer) Max() int {
	return c.rules.MaxCommittedPerDay
}
