// Package meeting выдаёт ссылки на видеовстречи для назначенных занятий.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/google/uuid"
)

// ErrNoBaseURL у RoomLinker не задан адрес сервера
var ErrNoBaseURL = errors.New("meeting base url is not configured")

// RoomLinker собирает ссылки на комнаты, которые сервер создаёт при первом входе
// (как в Jitsi). Внешних вызовов нет.
type RoomLinker struct {
	base  *url.URL
	newID func() uuid.UUID
}

// NewRoomLinker разбирает baseURL, например "https://meet.jit.si"
func NewRoomLinker(baseURL string) (*RoomLinker, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse meeting base url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("meeting base url must be http(s), got %q", baseURL)
	}
	return &RoomLinker{base: u, newID: uuid.New}, nil
}

// CreateMeetingLink возвращает уникальную ссылку на комнату. В имени комнаты
// slug названия и время начала, чтобы ссылка читалась в уведомлениях.
func (l *RoomLinker) CreateMeetingLink(ctx context.Context, title string, window availability.Window, _ []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	room := fmt.Sprintf("%s-%s-%s", slug(title), window.Start.UTC().Format("20060102-1504"), l.newID().String()[:8])
	return l.base.JoinPath(room).String(), nil
}

func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 32 {
			break
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "session"
	}
	return s
}
