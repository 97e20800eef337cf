package model

import (
	"time"

	"github.com/google/uuid"
)

type ProgramKind string

const (
	ProgramKindFocusOne ProgramKind = "focus_one" // один студент
	ProgramKindCohort   ProgramKind = "cohort"    // группа студентов
)

type ProgramStatus string

const (
	ProgramStatusActive    ProgramStatus = "active"
	ProgramStatusPaused    ProgramStatus = "paused"
	ProgramStatusCancelled ProgramStatus = "cancelled"
)

// Assignment пара учитель-предмет внутри программы
type Assignment struct {
	TeacherID uuid.UUID `json:"teacher_id"`
	SubjectID uuid.UUID `json:"subject_id"`
}

type Program struct {
	ID          uuid.UUID     `json:"id"`
	Kind        ProgramKind   `json:"kind"`
	Name        string        `json:"name"`
	Status      ProgramStatus `json:"status"`
	IsActive    bool          `json:"is_active"`
	StudentIDs  []uuid.UUID   `json:"student_ids"`
	Assignments []Assignment  `json:"assignments"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsBookable проверяет что по программе можно записываться на занятия
func (p *Program) IsBookable() bool {
	return p.IsActive && p.Status == ProgramStatusActive
}

// HasStudent проверяет что студент состоит в программе
func (p *Program) HasStudent(studentID uuid.UUID) bool {
	for _, id := range p.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// HasTeacher проверяет что учитель назначен хотя бы на один предмет программы
func (p *Program) HasTeacher(teacherID uuid.UUID) bool {
	for _, a := range p.Assignments {
		if a.TeacherID == teacherID {
			return true
		}
	}
	return false
}

// TeachesSubject проверяет назначение учителя на предмет.
// Если предмет не задан, достаточно назначения на программу.
func (p *Program) TeachesSubject(teacherID, subjectID uuid.UUID) bool {
	if subjectID == uuid.Nil {
		return p.HasTeacher(teacherID)
	}
	for _, a := range p.Assignments {
		if a.TeacherID == teacherID && a.SubjectID == subjectID {
			return true
		}
	}
	return false
}

// TeachersFor возвращает учителей предмета без повторов, в порядке назначения
func (p *Program) TeachersFor(subjectID uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, a := range p.Assignments {
		if subjectID != uuid.Nil && a.SubjectID != subjectID {
			continue
		}
		if _, ok := seen[a.TeacherID]; ok {
			continue
		}
		seen[a.TeacherID] = struct{}{}
		out = append(out, a.TeacherID)
	}
	return out
}
