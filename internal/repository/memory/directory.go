package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/google/uuid"
)

type ProgramRepository struct {
	mu       sync.RWMutex
	programs map[uuid.UUID]*model.Program
}

func NewProgramRepository() *ProgramRepository {
	return &ProgramRepository{programs: make(map[uuid.UUID]*model.Program)}
}

func (r *ProgramRepository) Add(p *model.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[p.ID] = cloneProgram(p)
}

func (r *ProgramRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.programs[id]
	if !ok {
		return nil, nil
	}
	return cloneProgram(p), nil
}

func (r *ProgramRepository) GetByTeacherID(_ context.Context, teacherID uuid.UUID) ([]*model.Program, error) {
	return r.filter(func(p *model.Program) bool { return p.HasTeacher(teacherID) }), nil
}

func (r *ProgramRepository) GetByStudentID(_ context.Context, studentID uuid.UUID) ([]*model.Program, error) {
	return r.filter(func(p *model.Program) bool { return p.HasStudent(studentID) }), nil
}

func (r *ProgramRepository) filter(keep func(*model.Program) bool) []*model.Program {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Program
	for _, p := range r.programs {
		if keep(p) {
			out = append(out, cloneProgram(p))
		}
	}
	slices.SortFunc(out, func(a, b *model.Program) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func cloneProgram(p *model.Program) *model.Program {
	c := *p
	c.StudentIDs = slices.Clone(p.StudentIDs)
	c.Assignments = slices.Clone(p.Assignments)
	return &c
}

type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*model.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]*model.User)}
}

func (r *UserRepository) Add(u *model.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *u
	r.users[u.ID] = &c
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (r *UserRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

type SubjectRepository struct {
	mu       sync.RWMutex
	subjects map[uuid.UUID]*model.Subject
}

func NewSubjectRepository() *SubjectRepository {
	return &SubjectRepository{subjects: make(map[uuid.UUID]*model.Subject)}
}

func (r *SubjectRepository) Add(s *model.Subject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.subjects[s.ID] = &c
}

func (r *SubjectRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.subjects[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}
