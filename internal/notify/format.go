package notify

import (
	"fmt"
	"time"
)

var weekdayShort = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

// formatWhen "Пт 16.10.2026, 10:00–11:00 (1 ч)". Если дату или время не
// разобрать, возвращает их как есть.
func formatWhen(date, start, end string) string {
	when := fmt.Sprintf("%s, %s–%s", date, start, end)

	if d, err := time.Parse("02.01.2006", date); err == nil {
		when = weekdayShort[d.Weekday()] + " " + when
	}

	from, errFrom := time.Parse("15:04", start)
	to, errTo := time.Parse("15:04", end)
	if errFrom == nil && errTo == nil && to.After(from) {
		when += " (" + formatDuration(int(to.Sub(from).Minutes())) + ")"
	}
	return when
}

// formatDuration длительность в минутах: "45 мин", "1 ч", "1 ч 30 мин"
func formatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d мин", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, mins)
}
