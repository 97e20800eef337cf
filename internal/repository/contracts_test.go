package repository

import (
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSessionFilterMatch(t *testing.T) {
	teacherID := uuid.New()
	programID := uuid.New()
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	s := &model.Session{
		ID:        uuid.New(),
		StartTime: day.Add(10 * time.Hour),
		EndTime:   day.Add(11 * time.Hour),
		TeacherID: &teacherID,
		Status:    model.SessionStatusScheduled,
	}
	s.SetProgram(model.ProgramKindCohort, programID)

	other := uuid.New()
	deleted := time.Now()

	tests := []struct {
		name   string
		filter SessionFilter
		mutate func(*model.Session)
		want   bool
	}{
		{name: "empty filter", want: true},
		{name: "teacher and day", filter: SessionFilter{TeacherID: &teacherID, From: day, To: day.AddDate(0, 0, 1)}, want: true},
		{name: "other teacher", filter: SessionFilter{TeacherID: &other}},
		{name: "program", filter: SessionFilter{ProgramID: &programID}, want: true},
		{name: "program list", filter: SessionFilter{ProgramIDs: []uuid.UUID{other, programID}}, want: true},
		{name: "status mismatch", filter: SessionFilter{Statuses: []model.SessionStatus{model.SessionStatusRequested}}},
		{name: "next day", filter: SessionFilter{From: day.AddDate(0, 0, 1)}},
		{name: "to is exclusive", filter: SessionFilter{To: day.Add(10 * time.Hour)}},
		{name: "unassigned only", filter: SessionFilter{Unassigned: true}},
		{name: "excluded", filter: SessionFilter{ExcludeID: &s.ID}},
		{name: "soft deleted", mutate: func(s *model.Session) { s.DeletedAt = &deleted }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := s.Clone()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			assert.Equal(t, tt.want, tt.filter.Match(c))
		})
	}
}

func TestGuardSortedKeys(t *testing.T) {
	g := &Guard{Keys: []string{"teacher:b", "program:a", "teacher:b"}}

	assert.Equal(t, []string{"program:a", "teacher:b"}, g.SortedKeys())
	assert.Nil(t, (*Guard)(nil).SortedKeys())
}

func TestDayKeys(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	day := time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)

	assert.Equal(t, "teacher:11111111-1111-1111-1111-111111111111:2026-10-16", TeacherDayKey(id, day))
	assert.Equal(t, "program:11111111-1111-1111-1111-111111111111:2026-10-16", ProgramDayKey(id, day))
	assert.Equal(t, "student:11111111-1111-1111-1111-111111111111:2026-10-16", StudentDayKey(id, day))
}
