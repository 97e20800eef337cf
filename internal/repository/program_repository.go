package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProgramRepository программы FocusOne и Cohort вместе с составом и назначениями учителей
type ProgramRepository struct {
	*base.Repository
}

func NewProgramRepository(pool *pgxpool.Pool) *ProgramRepository {
	return &ProgramRepository{Repository: base.NewRepository(pool)}
}

// GetByID получает программу по ID. Возвращает nil, nil если не найдена.
func (r *ProgramRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Program, error) {
	query := `
		SELECT id, kind, name, status, is_active, created_at
		FROM programs
		WHERE id = $1
	`

	var p model.Program
	err := r.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Kind,
		&p.Name,
		&p.Status,
		&p.IsActive,
		&p.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get program by id: %w", err)
	}

	if err := r.loadMembers(ctx, []*model.Program{&p}); err != nil {
		return nil, err
	}

	return &p, nil
}

// GetByTeacherID получает все программы, где учитель назначен хотя бы на один предмет
func (r *ProgramRepository) GetByTeacherID(ctx context.Context, teacherID uuid.UUID) ([]*model.Program, error) {
	query := `
		SELECT p.id, p.kind, p.name, p.status, p.is_active, p.created_at
		FROM programs p
		WHERE EXISTS (
			SELECT 1 FROM program_assignments a
			WHERE a.program_id = p.id AND a.teacher_id = $1
		)
		ORDER BY p.created_at
	`

	return r.list(ctx, query, teacherID)
}

// GetByStudentID получает все программы, где учится студент
func (r *ProgramRepository) GetByStudentID(ctx context.Context, studentID uuid.UUID) ([]*model.Program, error) {
	query := `
		SELECT p.id, p.kind, p.name, p.status, p.is_active, p.created_at
		FROM programs p
		JOIN program_students ps ON ps.program_id = p.id
		WHERE ps.student_id = $1
		ORDER BY p.created_at
	`

	return r.list(ctx, query, studentID)
}

func (r *ProgramRepository) list(ctx context.Context, query string, args ...any) ([]*model.Program, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var programs []*model.Program
	for rows.Next() {
		var p model.Program
		err := rows.Scan(
			&p.ID,
			&p.Kind,
			&p.Name,
			&p.Status,
			&p.IsActive,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		programs = append(programs, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}

	if err := r.loadMembers(ctx, programs); err != nil {
		return nil, err
	}

	return programs, nil
}

// loadMembers подгружает студентов и пары учитель-предмет
func (r *ProgramRepository) loadMembers(ctx context.Context, programs []*model.Program) error {
	if len(programs) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*model.Program, len(programs))
	ids := make([]uuid.UUID, 0, len(programs))
	for _, p := range programs {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.Query(ctx, `SELECT program_id, student_id FROM program_students WHERE program_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("get program students: %w", err)
	}
	for rows.Next() {
		var programID, studentID uuid.UUID
		if err := rows.Scan(&programID, &studentID); err != nil {
			rows.Close()
			return fmt.Errorf("scan program student: %w", err)
		}
		byID[programID].StudentIDs = append(byID[programID].StudentIDs, studentID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate program students: %w", err)
	}

	rows, err = r.Query(ctx, `
		SELECT program_id, teacher_id, subject_id
		FROM program_assignments
		WHERE program_id = ANY($1)
		ORDER BY created_at
	`, ids)
	if err != nil {
		return fmt.Errorf("get program assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			programID uuid.UUID
			a         model.Assignment
		)
		if err := rows.Scan(&programID, &a.TeacherID, &a.SubjectID); err != nil {
			return fmt.Errorf("scan program assignment: %w", err)
		}
		byID[programID].Assignments = append(byID[programID].Assignments, a)
	}

	return rows.Err()
}
