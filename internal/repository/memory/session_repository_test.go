package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(start time.Time, status model.SessionStatus) *model.Session {
	s := &model.Session{
		ID:        uuid.New(),
		Title:     "Math",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    status,
	}
	s.SetProgram(model.ProgramKindFocusOne, uuid.New())
	return s
}

func TestCreateAppendsHistory(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	s := newSession(time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC), model.SessionStatusRequested)

	err := repo.Create(ctx, s, model.HistoryEntry{Action: model.HistoryActionRequested, NewStatus: s.Status}, nil)
	require.NoError(t, err)
	assert.False(t, s.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 1)

	// хранилище держит копию
	got.Title = "changed"
	again, _ := repo.GetByID(ctx, s.ID)
	assert.Equal(t, "Math", again.Title)

	missing, err := repo.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGuardFailureWritesNothing(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	s := newSession(time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC), model.SessionStatusRequested)

	boom := errors.New("limit reached")
	guard := &repository.Guard{
		Keys: []string{"k"},
		Check: func(context.Context, repository.SessionReader) error {
			return boom
		},
	}
	err := repo.Create(ctx, s, model.HistoryEntry{}, guard)
	assert.ErrorIs(t, err, boom)

	n, err := repo.Count(ctx, repository.SessionFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransitionIsConditional(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	s := newSession(time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC), model.SessionStatusRequested)
	repo.Put(s)

	next := s.Clone()
	next.Status = model.SessionStatusRejected
	entry := model.HistoryEntry{Action: model.HistoryActionRejected, PreviousStatus: s.Status, NewStatus: next.Status}

	require.NoError(t, repo.Transition(ctx, next, model.SessionStatusRequested, entry, nil))
	assert.ErrorIs(t, repo.Transition(ctx, next, model.SessionStatusRequested, entry, nil), repository.ErrStatusChanged)

	ghost := newSession(s.StartTime, model.SessionStatusRequested)
	assert.ErrorIs(t, repo.Transition(ctx, ghost, model.SessionStatusRequested, entry, nil), repository.ErrNotFound)

	got, _ := repo.GetByID(ctx, s.ID)
	assert.Equal(t, model.SessionStatusRejected, got.Status)
	assert.Len(t, got.History, 1)
}

func TestConcurrentTransitionsSingleWinner(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	s := newSession(time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC), model.SessionStatusRequested)
	repo.Put(s)

	const workers = 8
	results := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			teacher := uuid.New()
			next := s.Clone()
			next.TeacherID = &teacher
			next.Status = model.SessionStatusScheduled
			results[i] = repo.Transition(ctx, next, model.SessionStatusRequested, model.HistoryEntry{Action: model.HistoryActionAccepted}, nil)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrStatusChanged)
	}
	assert.Equal(t, 1, wins)
}

func TestSoftDeletedSessionsAreInvisible(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()
	start := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	s := newSession(start, model.SessionStatusScheduled)
	repo.Put(s)
	repo.Put(newSession(start.Add(2*time.Hour), model.SessionStatusScheduled))

	require.True(t, repo.SoftDelete(s.ID, start))

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := repo.List(ctx, repository.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEqual(t, s.ID, list[0].ID)

	assert.ErrorIs(t, repo.Transition(ctx, s, model.SessionStatusScheduled, model.HistoryEntry{}, nil), repository.ErrNotFound)
}

func TestNotificationQueue(t *testing.T) {
	repo := NewNotificationRepository()
	ctx := context.Background()

	for range 3 {
		require.NoError(t, repo.Enqueue(ctx, &model.Notification{RecipientID: uuid.New(), TemplateKey: model.TemplateSessionAccepted}))
	}

	pending, err := repo.Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.MarkSent(ctx, pending[0].ID, time.Now()))
	require.NoError(t, repo.MarkFailed(ctx, pending[1].ID, "chat not found", true))
	assert.ErrorIs(t, repo.MarkSent(ctx, uuid.New(), time.Now()), repository.ErrNotFound)

	pending, err = repo.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all := repo.All()
	assert.Equal(t, model.NotificationStatusSent, all[0].Status)
	assert.Equal(t, model.NotificationStatusFailed, all[1].Status)
	assert.Equal(t, "chat not found", all[1].LastError)
	assert.Equal(t, 1, all[1].Attempts)
}
