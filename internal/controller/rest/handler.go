package rest

import (
	"strings"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/Freeeeeet/tutor_sessions/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type SessionHandler struct {
	booking  *service.BookingService
	slots    *service.AvailabilityService
	location *time.Location
	validate *validator.Validate
	logger   *zap.Logger
}

func NewSessionHandler(booking *service.BookingService, slots *service.AvailabilityService, loc *time.Location, logger *zap.Logger) *SessionHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SessionHandler{
		booking:  booking,
		slots:    slots,
		location: loc,
		validate: newValidator(),
		logger:   logger,
	}
}

// bind разбирает тело и прогоняет валидацию
func (h *SessionHandler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return h.validate.Struct(dst)
}

// POST /sessions
func (h *SessionHandler) CreateDirect(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	session, err := h.booking.CreateDirect(c.UserContext(), actorID(c), req.toInput())
	if err != nil {
		return err
	}
	return JsonCreated(c, "session scheduled", session)
}

// POST /sessions/requests
func (h *SessionHandler) Request(c *fiber.Ctx) error {
	var req RequestSessionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	session, err := h.booking.Request(c.UserContext(), actorID(c), req.toInput())
	if err != nil {
		return err
	}
	return JsonCreated(c, "session requested", session)
}

// GET /sessions/:id
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	session, err := h.booking.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return JsonOK(c, "", session)
}

// GET /sessions?teacher_id=&program_id=&subject_id=&status=a,b&from=&to=
func (h *SessionHandler) List(c *fiber.Ctx) error {
	filter, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	paging := ResolvePaging(c, defaultPerPage, maxPerPage)
	filter.Limit = paging.Limit
	filter.Offset = paging.Offset

	sessions, total, err := h.booking.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	return JsonList(c, "", sessions, BuildPagination(total, paging, len(sessions)))
}

func (h *SessionHandler) parseFilter(c *fiber.Ctx) (repository.SessionFilter, error) {
	var filter repository.SessionFilter

	for name, dst := range map[string]**uuid.UUID{
		"teacher_id": &filter.TeacherID,
		"program_id": &filter.ProgramID,
		"subject_id": &filter.SubjectID,
	} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
		}
		*dst = &id
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for part := range strings.SplitSeq(raw, ",") {
			status := model.SessionStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return filter, fiber.NewError(fiber.StatusBadRequest, "invalid status "+string(status))
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid "+name+", expected RFC3339")
		}
		*dst = t
	}

	return filter, nil
}

// POST /sessions/:id/accept
func (h *SessionHandler) Accept(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req AcceptSessionRequest
	if len(c.Body()) > 0 {
		if err := h.bind(c, &req); err != nil {
			return err
		}
	}

	session, err := h.booking.Accept(c.UserContext(), actorID(c), id, service.AcceptInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return JsonOK(c, "session accepted", session)
}

// POST /sessions/:id/reject
func (h *SessionHandler) Reject(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req ReasonRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	session, err := h.booking.Reject(c.UserContext(), actorID(c), id, req.Reason)
	if err != nil {
		return err
	}
	return JsonOK(c, "session rejected", session)
}

// POST /sessions/:id/cancel
func (h *SessionHandler) Cancel(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req ReasonRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	session, err := h.booking.Cancel(c.UserContext(), actorID(c), id, req.Reason)
	if err != nil {
		return err
	}
	return JsonOK(c, "session cancelled", session)
}

// POST /sessions/:id/reschedule
func (h *SessionHandler) Reschedule(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req RescheduleSessionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	session, err := h.booking.Reschedule(c.UserContext(), actorID(c), id, service.RescheduleInput{
		Start: req.StartTime,
		End:   req.EndTime,
	})
	if err != nil {
		return err
	}
	return JsonOK(c, "session rescheduled", session)
}

// POST /sessions/:id/start
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	session, err := h.booking.Start(c.UserContext(), actorID(c), id)
	if err != nil {
		return err
	}
	return JsonOK(c, "session started", session)
}

// POST /sessions/:id/complete
func (h *SessionHandler) Complete(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	session, err := h.booking.Complete(c.UserContext(), actorID(c), id)
	if err != nil {
		return err
	}
	return JsonOK(c, "session completed", session)
}

// GET /teachers/:id/slots?subject_id=&date=2026-10-16&duration_minutes=60
func (h *SessionHandler) TeacherSlots(c *fiber.Ctx) error {
	teacherID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	q, subjectID, date, err := h.slotsQuery(c)
	if err != nil {
		return err
	}

	windows, err := h.slots.TeacherSlots(c.UserContext(), teacherID, subjectID, date, time.Duration(q.DurationMinutes)*time.Minute)
	if err != nil {
		return err
	}
	return JsonOK(c, "", newSlotsResponse(q, windows))
}

// GET /programs/:id/slots?subject_id=&date=&duration_minutes=
func (h *SessionHandler) ProgramSlots(c *fiber.Ctx) error {
	programID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	q, subjectID, date, err := h.slotsQuery(c)
	if err != nil {
		return err
	}

	windows, err := h.slots.PoolSlots(c.UserContext(), programID, subjectID, date, time.Duration(q.DurationMinutes)*time.Minute)
	if err != nil {
		return err
	}
	return JsonOK(c, "", newSlotsResponse(q, windows))
}

func (h *SessionHandler) slotsQuery(c *fiber.Ctx) (SlotsQuery, uuid.UUID, time.Time, error) {
	var q SlotsQuery
	if err := c.QueryParser(&q); err != nil {
		return q, uuid.Nil, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "invalid query")
	}
	if err := h.validate.Struct(q); err != nil {
		return q, uuid.Nil, time.Time{}, err
	}

	// формат уже проверен валидатором
	subjectID := uuid.MustParse(q.SubjectID)
	date, _ := time.ParseInLocation(time.DateOnly, q.Date, h.location)
	return q, subjectID, date, nil
}

func newSlotsResponse(q SlotsQuery, windows []availability.Window) SlotsResponse {
	resp := SlotsResponse{
		Date:            q.Date,
		DurationMinutes: q.DurationMinutes,
		Slots:           make([]SlotEntry, 0, len(windows)),
	}
	for _, w := range windows {
		resp.Slots = append(resp.Slots, SlotEntry{StartTime: w.Start, EndTime: w.End})
	}
	return resp
}
