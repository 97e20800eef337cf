package service

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxSlotDuration самое длинное занятие, для которого ищем слоты
const MaxSlotDuration = 12 * time.Hour

// AvailabilityService свободные окна учителя или всей программы по предмету.
// Ничего не кэширует: каждый вызов читает актуальные занятия.
type AvailabilityService struct {
	sessions SessionStore
	programs ProgramStore
	users    UserStore
	capacity *CapacityEnforcer
	rules    availability.Rules
	logger   *zap.Logger
	now      func() time.Time
}

func NewAvailabilityService(
	sessions SessionStore,
	programs ProgramStore,
	users UserStore,
	capacity *CapacityEnforcer,
	rules availability.Rules,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		sessions: sessions,
		programs: programs,
		users:    users,
		capacity: capacity,
		rules:    rules,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock подменяет источник текущего времени
func (s *AvailabilityService) SetClock(now func() time.Time) {
	s.now = now
}

// Slots ленивая последовательность свободных окон учителя. Данные читаются
// один раз при вызове, последовательность можно обходить повторно.
func (s *AvailabilityService) Slots(ctx context.Context, teacherID, subjectID uuid.UUID, date time.Time, duration time.Duration) (iter.Seq[availability.Window], error) {
	if err := validateDuration(duration, s.rules.Step); err != nil {
		return nil, err
	}

	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil || !teacher.IsTeacher() {
		return nil, notFoundf("teacher %s not found", teacherID)
	}

	empty := func(func(availability.Window) bool) {}
	if !s.rules.IsBookableDay(s.now(), date) {
		return empty, nil
	}

	saturated, err := s.capacity.IsSaturated(ctx, teacherID, date)
	if err != nil {
		return nil, err
	}
	if saturated {
		return empty, nil
	}

	day := s.rules.DayBounds(date)

	serving, err := servingPrograms(ctx, s.programs, teacherID, subjectID)
	if err != nil {
		return nil, err
	}
	busy, err := teacherBusy(ctx, s.sessions, teacherID, subjectID, serving, day, nil)
	if err != nil {
		return nil, err
	}

	return availability.Slots(day.Start, duration, windowsOf(busy), s.rules), nil
}

// TeacherSlots свободные окна учителя на дату, по возрастанию начала
func (s *AvailabilityService) TeacherSlots(ctx context.Context, teacherID, subjectID uuid.UUID, date time.Time, duration time.Duration) ([]availability.Window, error) {
	seq, err := s.Slots(ctx, teacherID, subjectID, date, duration)
	if err != nil {
		return nil, err
	}

	slots := slices.Collect(seq)
	if slots == nil {
		slots = []availability.Window{}
	}
	return slots, nil
}

// PoolSlots объединение свободных окон всех учителей предмета в программе
func (s *AvailabilityService) PoolSlots(ctx context.Context, programID, subjectID uuid.UUID, date time.Time, duration time.Duration) ([]availability.Window, error) {
	if err := validateDuration(duration, s.rules.Step); err != nil {
		return nil, err
	}
	if subjectID == uuid.Nil {
		return nil, validationf("subject_id is required")
	}

	program, err := s.programs.GetByID(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	if program == nil {
		return nil, notFoundf("program %s not found", programID)
	}
	if !program.IsBookable() {
		return []availability.Window{}, nil
	}

	teachers := program.TeachersFor(subjectID)
	results := make([][]availability.Window, len(teachers))

	g, gctx := errgroup.WithContext(ctx)
	for i, teacherID := range teachers {
		g.Go(func() error {
			slots, err := s.TeacherSlots(gctx, teacherID, subjectID, date, duration)
			if err != nil {
				return fmt.Errorf("teacher %s: %w", teacherID, err)
			}
			results[i] = slots
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := availability.MergeSlots(results...)
	if merged == nil {
		merged = []availability.Window{}
	}

	s.logger.Debug("Pool slots computed",
		zap.String("program_id", programID.String()),
		zap.String("subject_id", subjectID.String()),
		zap.Int("teachers", len(teachers)),
		zap.Int("slots", len(merged)))

	return merged, nil
}

func validateDuration(d, step time.Duration) error {
	switch {
	case d <= 0:
		return validationf("duration must be positive")
	case d > MaxSlotDuration:
		return validationf("duration must not exceed %s", MaxSlotDuration)
	case step > 0 && d%step != 0:
		return validationf("duration must be a multiple of %s", step)
	}
	return nil
}
