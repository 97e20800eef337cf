package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository"
	"github.com/google/uuid"
)

type SessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[uuid.UUID]*model.Session)}
}

func (r *SessionRepository) Create(ctx context.Context, s *model.Session, entry model.HistoryEntry, guard *repository.Guard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.applyGuard(ctx, guard); err != nil {
		return err
	}
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("create session: duplicate id %s", s.ID)
	}

	ts := now()
	s.CreatedAt = ts
	s.UpdatedAt = ts
	s.History = append(s.History, entry)
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *SessionRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.DeletedAt != nil {
		return nil, nil
	}
	return s.Clone(), nil
}

func (r *SessionRepository) List(_ context.Context, filter repository.SessionFilter) ([]*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.list(filter), nil
}

func (r *SessionRepository) Count(_ context.Context, filter repository.SessionFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.count(filter), nil
}

func (r *SessionRepository) Transition(ctx context.Context, s *model.Session, expected model.SessionStatus, entry model.HistoryEntry, guard *repository.Guard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.applyGuard(ctx, guard); err != nil {
		return err
	}

	stored, ok := r.sessions[s.ID]
	if !ok || stored.DeletedAt != nil {
		return repository.ErrNotFound
	}
	if stored.Status != expected {
		return repository.ErrStatusChanged
	}

	next := s.Clone()
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = now()
	next.History = append(stored.Clone().History, entry)
	r.sessions[s.ID] = next

	s.UpdatedAt = next.UpdatedAt
	s.History = append(s.History, entry)
	return nil
}

// Put сохраняет занятие как есть, минуя workflow. Нужен для начального наполнения.
func (r *SessionRepository) Put(s *model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
		s.UpdatedAt = s.CreatedAt
	}
	r.sessions[s.ID] = s.Clone()
}

// SoftDelete помечает занятие удалённым
func (r *SessionRepository) SoftDelete(id uuid.UUID, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.DeletedAt = &at
	return true
}

func (r *SessionRepository) applyGuard(ctx context.Context, guard *repository.Guard) error {
	if guard == nil || guard.Check == nil {
		return nil
	}
	return guard.Check(ctx, lockedReader{r: r})
}

func (r *SessionRepository) list(filter repository.SessionFilter) []*model.Session {
	var out []*model.Session
	for _, s := range r.sessions {
		if !filter.Match(s) {
			continue
		}
		c := s.Clone()
		c.History = nil
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b *model.Session) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (r *SessionRepository) count(filter repository.SessionFilter) int {
	n := 0
	for _, s := range r.sessions {
		if filter.Match(s) {
			n++
		}
	}
	return n
}

// lockedReader читает без захвата мьютекса: вызывается только под ним
type lockedReader struct {
	r *SessionRepository
}

func (l lockedReader) List(_ context.Context, filter repository.SessionFilter) ([]*model.Session, error) {
	return l.r.list(filter), nil
}

func (l lockedReader) Count(_ context.Context, filter repository.SessionFilter) (int, error) {
	return l.r.count(filter), nil
}
