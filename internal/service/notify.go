package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notifyUsers кладёт уведомления в outbox. Ошибки не прерывают операцию:
// занятие уже сохранено, поэтому только логируем.
func (s *BookingService) notifyUsers(ctx context.Context, recipients []uuid.UUID, template string, session *model.Session, extra map[string]string) {
	if s.outbox == nil || len(recipients) == 0 {
		return
	}

	users, err := s.users.GetByIDs(ctx, dedupe(recipients))
	if err != nil {
		s.logger.Warn("Failed to load notification recipients",
			zap.String("session_id", session.ID.String()),
			zap.Error(err))
		return
	}

	for _, u := range users {
		payload := sessionPayload(session, s.rules.Location)
		for k, v := range extra {
			payload[k] = v
		}

		n := &model.Notification{
			ID:          uuid.New(),
			RecipientID: u.ID,
			Email:       u.Email,
			TemplateKey: template,
			Payload:     payload,
			Status:      model.NotificationStatusPending,
			CreatedAt:   s.now(),
		}
		if err := s.outbox.Enqueue(ctx, n); err != nil {
			s.logger.Warn("Failed to enqueue notification",
				zap.String("session_id", session.ID.String()),
				zap.String("recipient_id", u.ID.String()),
				zap.String("template", template),
				zap.Error(err))
		}
	}
}

func sessionPayload(s *model.Session, loc *time.Location) map[string]string {
	if loc == nil {
		loc = time.UTC
	}
	p := map[string]string{
		"session_id": s.ID.String(),
		"title":      s.Title,
		"status":     string(s.Status),
		"date":       s.StartTime.In(loc).Format("02.01.2006"),
		"start":      s.StartTime.In(loc).Format("15:04"),
		"end":        s.EndTime.In(loc).Format("15:04"),
	}
	if s.MeetingLink != "" {
		p["meeting_link"] = s.MeetingLink
	}
	return p
}

// studentSide кто получает уведомления со стороны студента
func studentSide(session *model.Session, program *model.Program) []uuid.UUID {
	var ids []uuid.UUID
	if session.RequestedBy != nil {
		ids = append(ids, *session.RequestedBy)
	}
	if program != nil {
		ids = append(ids, program.StudentIDs...)
	}
	return ids
}

// exceptActor не уведомляем того, кто сам выполнил действие
func exceptActor(ids []uuid.UUID, actorID uuid.UUID) []uuid.UUID {
	out := ids[:0:0]
	for _, id := range ids {
		if id != actorID {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
