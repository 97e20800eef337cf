package rest

import (
	"reflect"
	"strings"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	ProgramID   uuid.UUID  `json:"program_id" validate:"required"`
	SubjectID   *uuid.UUID `json:"subject_id"`
	TeacherID   *uuid.UUID `json:"teacher_id"`
	StartTime   time.Time  `json:"start_time" validate:"required"`
	EndTime     time.Time  `json:"end_time" validate:"required,gtfield=StartTime"`
	Title       string     `json:"title" validate:"max=200"`
	Description string     `json:"description" validate:"max=2000"`
}

func (r CreateSessionRequest) toInput() service.DirectInput {
	return service.DirectInput{
		ProgramID:   r.ProgramID,
		SubjectID:   r.SubjectID,
		TeacherID:   r.TeacherID,
		Start:       r.StartTime,
		End:         r.EndTime,
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
	}
}

type RequestSessionRequest struct {
	ProgramID   uuid.UUID `json:"program_id" validate:"required"`
	SubjectID   uuid.UUID `json:"subject_id" validate:"required"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Title       string    `json:"title" validate:"max=200"`
	Description string    `json:"description" validate:"max=2000"`
}

func (r RequestSessionRequest) toInput() service.RequestInput {
	return service.RequestInput{
		ProgramID:   r.ProgramID,
		SubjectID:   r.SubjectID,
		Start:       r.StartTime,
		End:         r.EndTime,
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
	}
}

type AcceptSessionRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type RescheduleSessionRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type SlotsQuery struct {
	SubjectID       string `query:"subject_id" validate:"required,uuid"`
	Date            string `query:"date" validate:"required,datetime=2006-01-02"`
	DurationMinutes int    `query:"duration_minutes" validate:"required,min=1,max=720"`
}

type SlotsResponse struct {
	Date            string      `json:"date"`
	DurationMinutes int         `json:"duration_minutes"`
	Slots           []SlotEntry `json:"slots"`
}

type SlotEntry struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return v
}

func fieldErrors(errs validator.ValidationErrors) map[string][]string {
	out := make(map[string][]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = append(out[fe.Field()], fe.Tag())
	}
	return out
}
