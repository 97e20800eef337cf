package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/Freeeeeet/tutor_sessions/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	*base.Repository
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт занятие и первую запись истории в одной транзакции
func (r *SessionRepository) Create(ctx context.Context, s *model.Session, entry model.HistoryEntry, guard *Guard) error {
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if err := applyGuard(ctx, tx, guard); err != nil {
			return err
		}

		query := `
			INSERT INTO sessions (
				id, title, description, start_time, end_time,
				focus_one_program_id, cohort_id, subject_id, teacher_id, status,
				requested_by, requested_at, accepted_by, accepted_at, meeting_link
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING created_at, updated_at
		`

		err := tx.QueryRow(
			ctx, query,
			s.ID,
			s.Title,
			s.Description,
			s.StartTime,
			s.EndTime,
			nullID(s.FocusOneProgramID),
			nullID(s.CohortID),
			nullID(s.SubjectID),
			nullID(s.TeacherID),
			s.Status,
			nullID(s.RequestedBy),
			s.RequestedAt,
			nullID(s.AcceptedBy),
			s.AcceptedAt,
			s.MeetingLink,
		).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		return insertHistory(ctx, tx, s.ID, entry)
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	s.History = append(s.History, entry)
	return nil
}

// GetByID получает занятие с историей. Возвращает nil, nil если не найдено.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE id = $1 AND deleted_at IS NULL"

	s, err := scanSession(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	s.History, err = r.history(ctx, id)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// List получает занятия по фильтру, без истории
func (r *SessionRepository) List(ctx context.Context, filter SessionFilter) ([]*model.Session, error) {
	return listSessions(ctx, r.Pool(), filter)
}

// Count считает занятия по фильтру
func (r *SessionRepository) Count(ctx context.Context, filter SessionFilter) (int, error) {
	return countSessions(ctx, r.Pool(), filter)
}

// Transition условно обновляет занятие: только если статус всё ещё равен expected.
// Поля занятия и запись истории фиксируются вместе.
func (r *SessionRepository) Transition(ctx context.Context, s *model.Session, expected model.SessionStatus, entry model.HistoryEntry, guard *Guard) error {
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if err := applyGuard(ctx, tx, guard); err != nil {
			return err
		}

		query := `
			UPDATE sessions
			SET title = $1, description = $2, start_time = $3, end_time = $4,
			    teacher_id = $5, status = $6,
			    accepted_by = $7, accepted_at = $8,
			    rejected_by = $9, rejected_at = $10, rejection_reason = $11,
			    cancelled_by = $12, cancelled_at = $13, cancellation_reason = $14,
			    meeting_link = $15, updated_at = NOW()
			WHERE id = $16 AND status = $17 AND deleted_at IS NULL
			RETURNING updated_at
		`

		err := tx.QueryRow(
			ctx, query,
			s.Title,
			s.Description,
			s.StartTime,
			s.EndTime,
			nullID(s.TeacherID),
			s.Status,
			nullID(s.AcceptedBy),
			s.AcceptedAt,
			nullID(s.RejectedBy),
			s.RejectedAt,
			s.RejectionReason,
			nullID(s.CancelledBy),
			s.CancelledAt,
			s.CancellationReason,
			s.MeetingLink,
			s.ID,
			expected,
		).Scan(&s.UpdatedAt)
		if err != nil {
			if base.IsNotFound(err) {
				return r.missingReason(ctx, tx, s.ID)
			}
			return fmt.Errorf("update session: %w", err)
		}

		return insertHistory(ctx, tx, s.ID, entry)
	})
	if err != nil {
		return err
	}

	s.History = append(s.History, entry)
	return nil
}

// missingReason отличает "нет такой записи" от "статус уже поменялся"
func (r *SessionRepository) missingReason(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1 AND deleted_at IS NULL)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check session exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusChanged
}

func (r *SessionRepository) history(ctx context.Context, sessionID uuid.UUID) ([]model.HistoryEntry, error) {
	query := `
		SELECT action, performed_by, performed_at, previous_status, new_status, notes, changed_fields
		FROM session_history
		WHERE session_id = $1
		ORDER BY id
	`

	rows, err := r.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var (
			entry       model.HistoryEntry
			performedBy uuid.NullUUID
			changed     []byte
		)
		err := rows.Scan(
			&entry.Action,
			&performedBy,
			&entry.PerformedAt,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.Notes,
			&changed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.PerformedBy = idPtr(performedBy)
		if len(changed) > 0 {
			if err := json.Unmarshal(changed, &entry.ChangedFields); err != nil {
				return nil, fmt.Errorf("decode changed fields: %w", err)
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func insertHistory(ctx context.Context, q base.Querier, sessionID uuid.UUID, entry model.HistoryEntry) error {
	var changed []byte
	if len(entry.ChangedFields) > 0 {
		var err error
		changed, err = json.Marshal(entry.ChangedFields)
		if err != nil {
			return fmt.Errorf("encode changed fields: %w", err)
		}
	}

	query := `
		INSERT INTO session_history (session_id, action, performed_by, performed_at, previous_status, new_status, notes, changed_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.Exec(
		ctx, query,
		sessionID,
		entry.Action,
		nullID(entry.PerformedBy),
		entry.PerformedAt,
		entry.PreviousStatus,
		entry.NewStatus,
		entry.Notes,
		changed,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// applyGuard берёт блокировки и перепроверяет инварианты внутри транзакции
func applyGuard(ctx context.Context, tx pgx.Tx, guard *Guard) error {
	if guard == nil {
		return nil
	}
	if err := base.LockKeys(ctx, tx, guard.SortedKeys()); err != nil {
		return err
	}
	if guard.Check == nil {
		return nil
	}
	return guard.Check(ctx, txReader{tx: tx})
}

// txReader читает занятия в рамках транзакции
type txReader struct {
	tx pgx.Tx
}

func (t txReader) List(ctx context.Context, filter SessionFilter) ([]*model.Session, error) {
	return listSessions(ctx, t.tx, filter)
}

func (t txReader) Count(ctx context.Context, filter SessionFilter) (int, error) {
	return countSessions(ctx, t.tx, filter)
}

func listSessions(ctx context.Context, q base.Querier, filter SessionFilter) ([]*model.Session, error) {
	query, args := buildSessionSelect(filter)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

func countSessions(ctx context.Context, q base.Querier, filter SessionFilter) (int, error) {
	query, args := buildSessionCount(filter)

	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var (
		s                                              model.Session
		focusOne, cohort, subject, teacher             uuid.NullUUID
		requestedBy, acceptedBy, rejectedBy, cancelled uuid.NullUUID
	)

	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Description,
		&s.StartTime,
		&s.EndTime,
		&focusOne,
		&cohort,
		&subject,
		&teacher,
		&s.Status,
		&requestedBy,
		&s.RequestedAt,
		&acceptedBy,
		&s.AcceptedAt,
		&rejectedBy,
		&s.RejectedAt,
		&s.RejectionReason,
		&cancelled,
		&s.CancelledAt,
		&s.CancellationReason,
		&s.MeetingLink,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	s.FocusOneProgramID = idPtr(focusOne)
	s.CohortID = idPtr(cohort)
	s.SubjectID = idPtr(subject)
	s.TeacherID = idPtr(teacher)
	s.RequestedBy = idPtr(requestedBy)
	s.AcceptedBy = idPtr(acceptedBy)
	s.RejectedBy = idPtr(rejectedBy)
	s.CancelledBy = idPtr(cancelled)

	return &s, nil
}

func nullID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func idPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}
