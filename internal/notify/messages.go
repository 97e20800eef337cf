package notify

import (
	"fmt"

	"github.com/Freeeeeet/tutor_sessions/internal/model"
)

// Render собирает текст уведомления по шаблону и данным занятия
func Render(n *model.Notification) (string, error) {
	p := n.Payload
	when := formatWhen(p["date"], p["start"], p["end"])

	var text string
	switch n.TemplateKey {
	case model.TemplateSessionRequested:
		text = fmt.Sprintf("📝 Новый запрос на занятие\n\n%s\n🕐 %s\n\nПримите или отклоните запрос.", p["title"], when)
	case model.TemplateSessionScheduled:
		text = fmt.Sprintf("📅 Занятие запланировано\n\n%s\n🕐 %s", p["title"], when)
	case model.TemplateSessionAccepted:
		text = fmt.Sprintf("✅ Запрос принят\n\n%s\n🕐 %s", p["title"], when)
	case model.TemplateSessionRejected:
		text = fmt.Sprintf("❌ Запрос отклонён\n\n%s\n🕐 %s\nПричина: %s", p["title"], when, p["reason"])
	case model.TemplateSessionAutoRejected:
		text = fmt.Sprintf("❌ Запрос отклонён автоматически\n\n%s\n🕐 %s\nПричина: %s\n\nВыберите другое время.", p["title"], when, p["reason"])
	case model.TemplateSessionCancelled:
		text = fmt.Sprintf("🚫 Занятие отменено\n\n%s\n🕐 %s\nПричина: %s", p["title"], when, p["reason"])
	case model.TemplateSessionRescheduled:
		text = fmt.Sprintf("🔄 Занятие перенесено\n\n%s\nБыло: %s\nСтало: 🕐 %s", p["title"], p["old_start"], when)
	default:
		return "", fmt.Errorf("unknown notification template %q", n.TemplateKey)
	}

	if link := p["meeting_link"]; link != "" {
		text += "\n\n🔗 " + link
	}
	return text, nil
}
