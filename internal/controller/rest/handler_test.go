package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository/memory"
	"github.com/Freeeeeet/tutor_sessions/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type apiFixture struct {
	app     *fiber.App
	store   *memory.Store
	teacher *model.User
	student *model.User
	other   *model.User
	math    *model.Subject
	program *model.Program
}

func newAPIFixture(t *testing.T, ping func(context.Context) error) *apiFixture {
	t.Helper()

	f := &apiFixture{store: memory.New()}

	f.teacher = &model.User{ID: uuid.New(), Email: "teacher@example.com", Role: model.RoleTeacher}
	f.student = &model.User{ID: uuid.New(), Email: "student@example.com", Role: model.RoleStudent}
	f.other = &model.User{ID: uuid.New(), Email: "other@example.com", Role: model.RoleStudent}
	for _, u := range []*model.User{f.teacher, f.student, f.other} {
		f.store.Users.Add(u)
	}

	f.math = &model.Subject{ID: uuid.New(), Name: "Math"}
	f.store.Subjects.Add(f.math)

	f.program = &model.Program{
		ID: uuid.New(), Kind: model.ProgramKindFocusOne, Name: "1:1",
		Status: model.ProgramStatusActive, IsActive: true,
		StudentIDs:  []uuid.UUID{f.student.ID},
		Assignments: []model.Assignment{{TeacherID: f.teacher.ID, SubjectID: f.math.ID}},
	}
	f.store.Programs.Add(f.program)

	logger := zap.NewNop()
	rules := availability.DefaultRules(time.UTC)
	clock := func() time.Time { return testNow }

	capacity := service.NewCapacityEnforcer(f.store.Sessions, rules)
	booking := service.NewBookingService(f.store.Sessions, f.store.Programs, f.store.Users,
		f.store.Subjects, f.store.Notifications, nil, capacity, rules, logger)
	booking.SetClock(clock)
	slots := service.NewAvailabilityService(f.store.Sessions, f.store.Programs, f.store.Users, capacity, rules, logger)
	slots.SetClock(clock)

	f.app = NewApp(NewSessionHandler(booking, slots, time.UTC, logger), NewHealthHandler(ping), logger)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, actor *model.User, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if actor != nil {
		req.Header.Set(HeaderUserID, actor.ID.String())
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *apiFixture) requestBody(start, end time.Time) map[string]any {
	return map[string]any{
		"program_id": f.program.ID,
		"subject_id": f.math.ID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
		"title":      "Algebra",
	}
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func TestRequireActor(t *testing.T) {
	f := newAPIFixture(t, nil)

	status, body := f.do(t, http.MethodGet, "/api/v1/sessions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error_code"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set(HeaderUserID, "not-a-uuid")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequestAcceptFlow(t *testing.T) {
	f := newAPIFixture(t, nil)
	start := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	status, body := f.do(t, http.MethodPost, "/api/v1/sessions/requests", f.student, f.requestBody(start, start.Add(time.Hour)))
	require.Equal(t, http.StatusCreated, status, body)
	created := data(t, body)
	assert.Equal(t, string(model.SessionStatusRequested), created["status"])
	assert.Nil(t, created["teacher_id"])

	id := created["id"].(string)
	status, body = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/accept", f.teacher, nil)
	require.Equal(t, http.StatusOK, status, body)
	accepted := data(t, body)
	assert.Equal(t, string(model.SessionStatusScheduled), accepted["status"])
	assert.Equal(t, f.teacher.ID.String(), accepted["teacher_id"])

	status, body = f.do(t, http.MethodGet, "/api/v1/sessions/"+id, f.student, nil)
	require.Equal(t, http.StatusOK, status)
	history, ok := data(t, body)["history"].([]any)
	require.True(t, ok)
	assert.Len(t, history, 2)
}

func TestRequestValidation(t *testing.T) {
	f := newAPIFixture(t, nil)
	start := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	status, body := f.do(t, http.MethodPost, "/api/v1/sessions/requests", f.student, f.requestBody(start, start.Add(-time.Hour)))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "end_time")

	// воскресенье: окно проходит валидатор DTO, но не правила расписания
	sunday := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	status, body = f.do(t, http.MethodPost, "/api/v1/sessions/requests", f.student, f.requestBody(sunday, sunday.Add(time.Hour)))
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "VALIDATION_ERROR", body["error_code"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/requests", bytes.NewBufferString("{broken"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(HeaderUserID, f.student.ID.String())
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDomainErrorStatuses(t *testing.T) {
	f := newAPIFixture(t, nil)
	start := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	status, body := f.do(t, http.MethodPost, "/api/v1/sessions/requests", f.other, f.requestBody(start, start.Add(time.Hour)))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["error_code"])

	status, _ = f.do(t, http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), f.student, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/sessions/nope", f.student, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodPost, "/api/v1/sessions/requests", f.student, f.requestBody(start, start.Add(time.Hour)))
	require.Equal(t, http.StatusCreated, status)
	id := data(t, body)["id"].(string)

	// второй запрос по тому же предмету в тот же день
	status, body = f.do(t, http.MethodPost, "/api/v1/sessions/requests", f.student, f.requestBody(start.Add(3*time.Hour), start.Add(4*time.Hour)))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["error_code"])

	status, body = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reject", f.teacher, map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body["errors"], "reason")

	status, body = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reject", f.teacher, map[string]any{"reason": "busy"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(model.SessionStatusRejected), data(t, body)["status"])
	assert.Equal(t, "busy", data(t, body)["rejection_reason"])

	status, _ = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/accept", f.teacher, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestCancelAndReschedule(t *testing.T) {
	f := newAPIFixture(t, nil)
	start := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	status, body := f.do(t, http.MethodPost, "/api/v1/sessions/requests", f.student, f.requestBody(start, start.Add(time.Hour)))
	require.Equal(t, http.StatusCreated, status)
	id := data(t, body)["id"].(string)

	moved := start.Add(2 * time.Hour)
	status, body = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reschedule", f.student, map[string]any{
		"start_time": moved.Format(time.RFC3339),
		"end_time":   moved.Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, moved.Format(time.RFC3339), data(t, body)["start_time"])

	status, body = f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/cancel", f.student, map[string]any{"reason": "sick"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(model.SessionStatusCancelled), data(t, body)["status"])
}

func TestListSessionsPaging(t *testing.T) {
	f := newAPIFixture(t, nil)

	for day := 16; day <= 17; day++ {
		start := time.Date(2026, 10, day, 10, 0, 0, 0, time.UTC)
		status, _ := f.do(t, http.MethodPost, "/api/v1/sessions/requests", f.student, f.requestBody(start, start.Add(time.Hour)))
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := f.do(t, http.MethodGet, "/api/v1/sessions?program_id="+f.program.ID.String()+"&status=requested&per_page=1", f.student, nil)
	require.Equal(t, http.StatusOK, status)
	items, ok := body["data"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)

	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 2, pagination["total"])
	assert.EqualValues(t, 2, pagination["total_pages"])
	assert.Equal(t, true, pagination["has_next"])

	status, _ = f.do(t, http.MethodGet, "/api/v1/sessions?status=bogus", f.student, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodGet, "/api/v1/sessions?status=scheduled", f.student, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])
}

func TestTeacherSlots(t *testing.T) {
	f := newAPIFixture(t, nil)

	path := "/api/v1/teachers/" + f.teacher.ID.String() + "/slots?subject_id=" + f.math.ID.String() + "&date=2026-10-16&duration_minutes=60"
	status, body := f.do(t, http.MethodGet, path, f.student, nil)
	require.Equal(t, http.StatusOK, status, body)

	resp := data(t, body)
	slots, ok := resp["slots"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, slots)
	first := slots[0].(map[string]any)
	assert.Equal(t, "2026-10-16T09:00:00Z", first["start_time"])
	assert.Equal(t, "2026-10-16T10:00:00Z", first["end_time"])

	status, body = f.do(t, http.MethodGet, "/api/v1/teachers/"+f.teacher.ID.String()+"/slots?date=16.10.2026&duration_minutes=60", f.student, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "subject_id")
	assert.Contains(t, errs, "date")
}

func TestProgramSlotsClosedDay(t *testing.T) {
	f := newAPIFixture(t, nil)

	path := "/api/v1/programs/" + f.program.ID.String() + "/slots?subject_id=" + f.math.ID.String() + "&date=2026-10-18&duration_minutes=60"
	status, body := f.do(t, http.MethodGet, path, f.student, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Empty(t, data(t, body)["slots"])
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, func(context.Context) error { return nil })
	status, body := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["storage"])

	f = newAPIFixture(t, func(context.Context) error { return errors.New("db down") })
	status, body = f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", body["storage"])
}
