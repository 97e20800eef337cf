package repository

import (
	"fmt"
	"strings"
)

const sessionColumns = `
	id, title, description, start_time, end_time,
	focus_one_program_id, cohort_id, subject_id, teacher_id, status,
	requested_by, requested_at, accepted_by, accepted_at,
	rejected_by, rejected_at, rejection_reason,
	cancelled_by, cancelled_at, cancellation_reason,
	meeting_link, created_at, updated_at, deleted_at
`

// buildSessionWhere собирает WHERE и аргументы для фильтра
func buildSessionWhere(f SessionFilter) (string, []any) {
	conds := []string{"deleted_at IS NULL"}
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(f.IDs) > 0 {
		add("id = ANY($%d)", f.IDs)
	}
	if f.TeacherID != nil {
		add("teacher_id = $%d", *f.TeacherID)
	}
	if f.ProgramID != nil {
		add("COALESCE(focus_one_program_id, cohort_id) = $%d", *f.ProgramID)
	}
	if len(f.ProgramIDs) > 0 {
		add("COALESCE(focus_one_program_id, cohort_id) = ANY($%d)", f.ProgramIDs)
	}
	if f.SubjectID != nil {
		add("subject_id = $%d", *f.SubjectID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if !f.From.IsZero() {
		add("start_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("start_time < $%d", f.To)
	}
	if f.Unassigned {
		conds = append(conds, "teacher_id IS NULL")
	}
	if f.ExcludeID != nil {
		add("id <> $%d", *f.ExcludeID)
	}

	return strings.Join(conds, " AND "), args
}

// buildSessionSelect собирает полный SELECT с сортировкой и пагинацией
func buildSessionSelect(f SessionFilter) (string, []any) {
	where, args := buildSessionWhere(f)
	query := "SELECT " + sessionColumns + " FROM sessions WHERE " + where + " ORDER BY start_time, id"

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func buildSessionCount(f SessionFilter) (string, []any) {
	where, args := buildSessionWhere(f)
	return "SELECT COUNT(*) FROM sessions WHERE " + where, args
}
