package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	// AutoRejectReason причина системного отклонения при заполнении дня учителя
	AutoRejectReason = "Teacher has reached the maximum number of sessions for this day"

	defaultTitle = "Tutoring session"
)

type BookingService struct {
	sessions SessionStore
	programs ProgramStore
	users    UserStore
	subjects SubjectStore
	outbox   Outbox
	meetings MeetingLinker
	capacity *CapacityEnforcer
	rules    availability.Rules
	logger   *zap.Logger

	now     func() time.Time
	backoff func() retry.Backoff
}

func NewBookingService(
	sessions SessionStore,
	programs ProgramStore,
	users UserStore,
	subjects SubjectStore,
	outbox Outbox,
	meetings MeetingLinker,
	capacity *CapacityEnforcer,
	rules availability.Rules,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		sessions: sessions,
		programs: programs,
		users:    users,
		subjects: subjects,
		outbox:   outbox,
		meetings: meetings,
		capacity: capacity,
		rules:    rules,
		logger:   logger,
		now:      time.Now,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
		},
	}
}

// SetClock подменяет источник текущего времени
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

// SetBackoff подменяет стратегию повторов каскадного отклонения
func (s *BookingService) SetBackoff(backoff func() retry.Backoff) {
	s.backoff = backoff
}

// DirectInput занятие, которое администратор или учитель ставит сразу в расписание
type DirectInput struct {
	ProgramID   uuid.UUID
	SubjectID   *uuid.UUID
	TeacherID   *uuid.UUID // обязателен для администратора
	Start       time.Time
	End         time.Time
	Title       string
	Description string
}

// RequestInput запрос студента на занятие
type RequestInput struct {
	ProgramID   uuid.UUID
	SubjectID   uuid.UUID
	Start       time.Time
	End         time.Time
	Title       string
	Description string
}

// CreateDirect создаёт занятие сразу в статусе scheduled
func (s *BookingService) CreateDirect(ctx context.Context, actorID uuid.UUID, in DirectInput) (*model.Session, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsTeacher() {
		return nil, forbiddenf("only admins and teachers can schedule sessions directly")
	}

	window := availability.Window{Start: in.Start, End: in.End}
	if err := s.validateWindow(window); err != nil {
		return nil, err
	}

	program, err := s.loadProgram(ctx, in.ProgramID)
	if err != nil {
		return nil, err
	}
	if !program.IsBookable() {
		return nil, conflictf("program %s is not active", program.Name)
	}

	// Определяем учителя
	var teacherID uuid.UUID
	switch {
	case actor.IsTeacher():
		if in.TeacherID != nil && *in.TeacherID != actor.ID {
			return nil, forbiddenf("teachers can only schedule their own sessions")
		}
		teacherID = actor.ID
	case in.TeacherID == nil || *in.TeacherID == uuid.Nil:
		return nil, validationf("teacher_id is required")
	default:
		teacher, err := s.users.GetByID(ctx, *in.TeacherID)
		if err != nil {
			return nil, fmt.Errorf("get teacher: %w", err)
		}
		if teacher == nil || !teacher.IsTeacher() {
			return nil, notFoundf("teacher %s not found", *in.TeacherID)
		}
		teacherID = teacher.ID
	}

	var subjectID uuid.UUID
	title := in.Title
	if in.SubjectID != nil && *in.SubjectID != uuid.Nil {
		subject, err := s.loadSubject(ctx, *in.SubjectID)
		if err != nil {
			return nil, err
		}
		subjectID = subject.ID
		if title == "" {
			title = subject.Name
		}
	}

	if !program.TeachesSubject(teacherID, subjectID) {
		if actor.IsTeacher() {
			return nil, forbiddenf("teacher is not assigned to this subject in the program")
		}
		return nil, validationf("teacher is not assigned to this subject in the program")
	}

	if title == "" {
		title = defaultTitle
	}

	now := s.now()
	session := &model.Session{
		ID:          uuid.New(),
		Title:       title,
		Description: in.Description,
		StartTime:   window.Start,
		EndTime:     window.End,
		TeacherID:   &teacherID,
		Status:      model.SessionStatusScheduled,
		RequestedBy: &actor.ID,
		RequestedAt: &now,
		AcceptedBy:  &actor.ID,
		AcceptedAt:  &now,
	}
	session.SetProgram(program.Kind, program.ID)
	if subjectID != uuid.Nil {
		session.SubjectID = &subjectID
	}

	scopes, err := studentScopes(ctx, s.programs, program)
	if err != nil {
		return nil, err
	}

	day := s.rules.DayOf(window.Start)
	check := func(ctx context.Context, r repository.SessionReader) error {
		if err := checkStudentsDay(ctx, r, scopes, subjectID, s.rules.DayBounds(day), nil, s.rules.MaxStudentPerDay); err != nil {
			return err
		}
		return checkTeacherFits(ctx, r, s.capacity, s.rules, teacherID, window, nil)
	}

	// Предварительная проверка без блокировок, чтобы не заводить встречу
	// для заведомо невозможного занятия. Окончательная проверка в guard.
	if err := check(ctx, s.sessions); err != nil {
		return nil, err
	}

	// Ссылку получаем до сохранения: без неё занятие не создаём
	link, err := s.meetingLink(ctx, session, program, teacherID)
	if err != nil {
		return nil, err
	}
	session.MeetingLink = link

	guard := &repository.Guard{
		Keys:  append(studentDayKeys(program.ID, scopes, day), repository.TeacherDayKey(teacherID, day)),
		Check: check,
	}

	entry := model.HistoryEntry{
		Action:      model.HistoryActionScheduled,
		PerformedBy: &actor.ID,
		PerformedAt: now,
		NewStatus:   model.SessionStatusScheduled,
	}
	if err := s.sessions.Create(ctx, session, entry, guard); err != nil {
		return nil, s.storeError("create session", err)
	}

	s.logger.Info("Session scheduled",
		zap.String("session_id", session.ID.String()),
		zap.String("teacher_id", teacherID.String()),
		zap.String("program_id", program.ID.String()),
		zap.Time("start", session.StartTime),
		zap.String("actor_id", actor.ID.String()),
	)

	s.notifyUsers(ctx, exceptActor(append(studentSide(session, program), teacherID), actor.ID),
		model.TemplateSessionScheduled, session, nil)

	s.autoRejectIfSaturated(ctx, teacherID, session.StartTime)

	return session, nil
}

// Request студент запрашивает занятие; учитель назначится при принятии
func (s *BookingService) Request(ctx context.Context, actorID uuid.UUID, in RequestInput) (*model.Session, error) {
	actor, err := s.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	if in.SubjectID == uuid.Nil {
		return nil, validationf("subject_id is required")
	}

	window := availability.Window{Start: in.Start, End: in.End}
	if err := s.validateWindow(window); err != nil {
		return nil, err
	}

	program, err := s.loadProgram(ctx, in.ProgramID)
	if err != nil {
		return nil, err
	}
	if !program.HasStudent(actor.ID) {
		return nil, forbiddenf("only students of the program can request sessions")
	}
	if !program.IsBookable() {
		return nil, conflictf("program %s is not active", program.Name)
	}

	subject, err := s.loadSubject(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}

	teachers := program.TeachersFor(subject.ID)
	if len(teachers) == 0 {
		return nil, notFoundf("no teacher is assigned to %s in this program", subject.Name)
	}

	// Для каждого учителя собираем программы, где он ведёт этот предмет
	serving := make(map[uuid.UUID][]uuid.UUID, len(teachers))
	for _, t := range teachers {
		ids, err := servingPrograms(ctx, s.programs, t, subject.ID)
		if err != nil {
			return nil, err
		}
		serving[t] = ids
	}

	scopes, err := studentScopes(ctx, s.programs, program)
	if err != nil {
		return nil, err
	}

	day := s.rules.DayOf(window.Start)
	keys := studentDayKeys(program.ID, scopes, day)
	for _, t := range teachers {
		keys = append(keys, repository.TeacherDayKey(t, day))
	}

	var eligible []uuid.UUID
	guard := &repository.Guard{
		Keys: keys,
		Check: func(ctx context.Context, r repository.SessionReader) error {
			if err := checkStudentsDay(ctx, r, scopes, subject.ID, s.rules.DayBounds(day), nil, s.rules.MaxStudentPerDay); err != nil {
				return err
			}
			free, err := s.freeTeachers(ctx, r, teachers, serving, subject.ID, window, nil)
			if err != nil {
				return err
			}
			if len(free) == 0 {
				return conflictf("no teacher is available at %s", window)
			}
			eligible = free
			return nil
		},
	}

	title := in.Title
	if title == "" {
		title = subject.Name
	}

	now := s.now()
	session := &model.Session{
		ID:          uuid.New(),
		Title:       title,
		Description: in.Description,
		StartTime:   window.Start,
		EndTime:     window.End,
		SubjectID:   &subject.ID,
		Status:      model.SessionStatusRequested,
		RequestedBy: &actor.ID,
		RequestedAt: &now,
	}
	session.SetProgram(program.Kind, program.ID)

	entry := model.HistoryEntry{
		Action:      model.HistoryActionRequested,
		PerformedBy: &actor.ID,
		PerformedAt: now,
		NewStatus:   model.SessionStatusRequested,
	}
	if err := s.sessions.Create(ctx, session, entry, guard); err != nil {
		return nil, s.storeError("create session request", err)
	}

	s.logger.Info("Session requested",
		zap.String("session_id", session.ID.String()),
		zap.String("program_id", program.ID.String()),
		zap.String("subject_id", subject.ID.String()),
		zap.Time("start", session.StartTime),
		zap.Int("eligible_teachers", len(eligible)),
	)

	s.notifyUsers(ctx, eligible, model.TemplateSessionRequested, session, nil)

	return session, nil
}

// Get возвращает занятие вместе с историей
func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return s.loadSession(ctx, id)
}

// List выборка занятий с общим количеством для пагинации
func (s *BookingService) List(ctx context.Context, filter repository.SessionFilter) ([]*model.Session, int, error) {
	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countFilter := filter
	countFilter.Limit = 0
	countFilter.Offset = 0
	total, err := s.sessions.Count(ctx, countFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

// freeTeachers учителя без превышения лимита и без пересечений на это окно
func (s *BookingService) freeTeachers(ctx context.Context, r repository.SessionReader, teachers []uuid.UUID, serving map[uuid.UUID][]uuid.UUID, subjectID uuid.UUID, window availability.Window, exclude *uuid.UUID) ([]uuid.UUID, error) {
	day := s.rules.DayBounds(window.Start)

	var free []uuid.UUID
	for _, t := range teachers {
		count, err := s.capacity.CountIn(ctx, r, t, window.Start, exclude)
		if err != nil {
			return nil, err
		}
		if count >= s.capacity.Max() {
			continue
		}

		busy, err := teacherBusy(ctx, r, t, subjectID, serving[t], day, exclude)
		if err != nil {
			return nil, err
		}
		if availability.Conflicts(window, windowsOf(busy), s.rules) {
			continue
		}
		free = append(free, t)
	}
	return free, nil
}

func (s *BookingService) validateWindow(w availability.Window) error {
	if err := s.rules.ValidateWindow(s.now(), w); err != nil {
		var we *availability.WindowError
		if errors.As(err, &we) {
			return validationf("%s", we.Reason)
		}
		return err
	}
	return nil
}

func (s *BookingService) meetingLink(ctx context.Context, session *model.Session, program *model.Program, teacherID uuid.UUID) (string, error) {
	if s.meetings == nil {
		return "", nil
	}

	ids := append([]uuid.UUID{teacherID}, program.StudentIDs...)
	users, err := s.users.GetByIDs(ctx, dedupe(ids))
	if err != nil {
		return "", fmt.Errorf("get participants: %w", err)
	}

	participants := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email != "" {
			participants = append(participants, u.Email)
		}
	}

	link, err := s.meetings.CreateMeetingLink(ctx, session.Title, windowOf(session), participants)
	if err != nil {
		s.logger.Error("Failed to create meeting link",
			zap.String("session_id", session.ID.String()),
			zap.Error(err))
		return "", dependency("meeting link could not be created", err)
	}
	return link, nil
}

// storeError переводит ошибки хранилища в доменные
func (s *BookingService) storeError(op string, err error) error {
	var domain *Error
	switch {
	case errors.As(err, &domain):
		return err
	case errors.Is(err, repository.ErrStatusChanged):
		return conflictf("session status changed, reload and try again")
	case errors.Is(err, repository.ErrNotFound):
		return notFoundf("session not found")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func trimReason(reason string) string {
	return strings.TrimSpace(reason)
}
