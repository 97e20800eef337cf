package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/Freeeeeet/tutor_sessions/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 2026-10-15 четверг; 16 пятница, 18 воскресенье
var testNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

type fakeLinker struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeLinker) CreateMeetingLink(_ context.Context, _ string, w availability.Window, _ []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://meet.test/" + w.Start.Format("20060102T1504"), nil
}

// flakySessions ломает Transition для выбранных занятий
type flakySessions struct {
	*memory.SessionRepository
	mu   sync.Mutex
	fail map[uuid.UUID]int // сколько раз ещё падать; -1 всегда
}

func (f *flakySessions) Transition(ctx context.Context, s *model.Session, expected model.SessionStatus, entry model.HistoryEntry, guard *repository.Guard) error {
	f.mu.Lock()
	left, ok := f.fail[s.ID]
	if ok && left != 0 {
		if left > 0 {
			f.fail[s.ID] = left - 1
		}
		f.mu.Unlock()
		return errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.SessionRepository.Transition(ctx, s, expected, entry, guard)
}

type fixture struct {
	store    *memory.Store
	sessions *flakySessions
	booking  *BookingService
	slots    *AvailabilityService
	linker   *fakeLinker
	capacity *CapacityEnforcer
	rules    availability.Rules

	admin, teacher, teacher2, student, student2, outsider *model.User
	math, physics                                          *model.Subject

	program *model.Program // focus one: student; teacher math+physics, teacher2 math
	cohort  *model.Program // cohort: student2; teacher math, teacher2 physics
	other   *model.Program // без студентов, teacher; для посева чужих занятий
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.New(),
		linker: &fakeLinker{},
		rules:  availability.DefaultRules(time.UTC),
	}
	f.sessions = &flakySessions{SessionRepository: f.store.Sessions, fail: map[uuid.UUID]int{}}

	user := func(role model.Role, name string) *model.User {
		u := &model.User{ID: uuid.New(), Email: name + "@example.com", FullName: name, Role: role, CreatedAt: testNow}
		f.store.Users.Add(u)
		return u
	}
	f.admin = user(model.RoleAdmin, "admin")
	f.teacher = user(model.RoleTeacher, "teacher")
	f.teacher2 = user(model.RoleTeacher, "teacher2")
	f.student = user(model.RoleStudent, "student")
	f.student2 = user(model.RoleStudent, "student2")
	f.outsider = user(model.RoleStudent, "outsider")

	f.math = &model.Subject{ID: uuid.New(), Name: "Math"}
	f.physics = &model.Subject{ID: uuid.New(), Name: "Physics"}
	f.store.Subjects.Add(f.math)
	f.store.Subjects.Add(f.physics)

	f.program = &model.Program{
		ID: uuid.New(), Kind: model.ProgramKindFocusOne, Name: "Alice 1:1",
		Status: model.ProgramStatusActive, IsActive: true,
		StudentIDs: []uuid.UUID{f.student.ID},
		Assignments: []model.Assignment{
			{TeacherID: f.teacher.ID, SubjectID: f.math.ID},
			{TeacherID: f.teacher.ID, SubjectID: f.physics.ID},
			{TeacherID: f.teacher2.ID, SubjectID: f.math.ID},
		},
		CreatedAt: testNow.Add(-3 * time.Hour),
	}
	f.cohort = &model.Program{
		ID: uuid.New(), Kind: model.ProgramKindCohort, Name: "Cohort A",
		Status: model.ProgramStatusActive, IsActive: true,
		StudentIDs: []uuid.UUID{f.student2.ID},
		Assignments: []model.Assignment{
			{TeacherID: f.teacher.ID, SubjectID: f.math.ID},
			{TeacherID: f.teacher2.ID, SubjectID: f.physics.ID},
		},
		CreatedAt: testNow.Add(-2 * time.Hour),
	}
	f.other = &model.Program{
		ID: uuid.New(), Kind: model.ProgramKindFocusOne, Name: "Other",
		Status: model.ProgramStatusActive, IsActive: true,
		Assignments: []model.Assignment{
			{TeacherID: f.teacher.ID, SubjectID: f.math.ID},
			{TeacherID: f.teacher2.ID, SubjectID: f.math.ID},
		},
		CreatedAt: testNow.Add(-time.Hour),
	}
	f.store.Programs.Add(f.program)
	f.store.Programs.Add(f.cohort)
	f.store.Programs.Add(f.other)

	logger := zap.NewNop()
	clock := func() time.Time { return testNow }

	f.capacity = NewCapacityEnforcer(f.sessions, f.rules)
	f.booking = NewBookingService(f.sessions, f.store.Programs, f.store.Users, f.store.Subjects,
		f.store.Notifications, f.linker, f.capacity, f.rules, logger)
	f.booking.SetClock(clock)
	f.booking.SetBackoff(func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	})

	f.slots = NewAvailabilityService(f.sessions, f.store.Programs, f.store.Users, f.capacity, f.rules, logger)
	f.slots.SetClock(clock)

	return f
}

// seed кладёт занятие напрямую в хранилище, минуя правила
func (f *fixture) seed(program *model.Program, teacher *model.User, status model.SessionStatus, start, end time.Time) *model.Session {
	s := &model.Session{
		ID:        uuid.New(),
		Title:     "seeded",
		StartTime: start,
		EndTime:   end,
		Status:    status,
	}
	s.SetProgram(program.Kind, program.ID)
	if teacher != nil {
		s.TeacherID = &teacher.ID
	}
	f.store.Sessions.Put(s)
	return s
}

func (f *fixture) request(t *testing.T, student *model.User, program *model.Program, subject *model.Subject, start, end time.Time) *model.Session {
	t.Helper()
	s, err := f.booking.Request(context.Background(), student.ID, RequestInput{
		ProgramID: program.ID,
		SubjectID: subject.ID,
		Start:     start,
		End:       end,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *model.Session {
	t.Helper()
	s, err := f.store.Sessions.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func (f *fixture) notifications(template string) []*model.Notification {
	var out []*model.Notification
	for _, n := range f.store.Notifications.All() {
		if n.TemplateKey == template {
			out = append(out, n)
		}
	}
	return out
}
