package availability

import (
	"fmt"
	"time"
)

const (
	DefaultStep               = 15 * time.Minute
	DefaultBuffer             = 15 * time.Minute
	DefaultBlackout           = 60 * time.Minute
	DefaultMaxCommittedPerDay = 4
	DefaultMaxStudentPerDay   = 3
)

// Rules рабочие часы и интервалы дня учителя.
// Open, LatestStart и Close задаются как настенное время от местной полуночи.
type Rules struct {
	Location *time.Location

	Open        time.Duration
	LatestStart time.Duration
	Close       time.Duration
	ClosedDays  []time.Weekday

	Step     time.Duration
	Buffer   time.Duration
	Blackout time.Duration

	MaxCommittedPerDay int
	MaxStudentPerDay   int
}

func DefaultRules(loc *time.Location) Rules {
	return Rules{
		Location:           loc,
		Open:               9 * time.Hour,
		LatestStart:        19*time.Hour + 45*time.Minute,
		Close:              21 * time.Hour,
		ClosedDays:         []time.Weekday{time.Sunday},
		Step:               DefaultStep,
		Buffer:             DefaultBuffer,
		Blackout:           DefaultBlackout,
		MaxCommittedPerDay: DefaultMaxCommittedPerDay,
		MaxStudentPerDay:   DefaultMaxStudentPerDay,
	}
}

func (r Rules) loc() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// DayOf местная полночь календарного дня, в который попадает t
func (r Rules) DayOf(t time.Time) time.Time {
	lt := t.In(r.loc())
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, r.loc())
}

// DayBounds весь календарный день t: [полночь, следующая полночь)
func (r Rules) DayBounds(t time.Time) Window {
	day := r.DayOf(t)
	return Window{Start: day, End: day.AddDate(0, 0, 1)}
}

// At момент, когда на часах дня day показывает offset от полуночи.
// Считается по настенному времени, поэтому в дни перевода часов сетка не съезжает.
func (r Rules) At(day time.Time, offset time.Duration) time.Time {
	lt := day.In(r.loc())
	h := offset / time.Hour
	m := (offset % time.Hour) / time.Minute
	s := (offset % time.Minute) / time.Second
	return time.Date(lt.Year(), lt.Month(), lt.Day(), int(h), int(m), int(s), 0, r.loc())
}

func (r Rules) SameDay(a, b time.Time) bool {
	return r.DayOf(a).Equal(r.DayOf(b))
}

func (r Rules) IsClosed(day time.Time) bool {
	wd := day.In(r.loc()).Weekday()
	for _, c := range r.ClosedDays {
		if c == wd {
			return true
		}
	}
	return false
}

// IsBookableDay день строго после сегодняшнего и не выходной
func (r Rules) IsBookableDay(now, day time.Time) bool {
	return r.DayOf(day).After(r.DayOf(now)) && !r.IsClosed(day)
}

// clockOffset настенное время t от местной полуночи, не зависит от перевода часов
func (r Rules) clockOffset(t time.Time) time.Duration {
	lt := t.In(r.loc())
	h, m, s := lt.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(lt.Nanosecond())
}

// WindowError причина, по которой окно нельзя забронировать
type WindowError struct {
	Reason string
}

func (e *WindowError) Error() string { return e.Reason }

func windowErrorf(format string, args ...any) error {
	return &WindowError{Reason: fmt.Sprintf(format, args...)}
}

// ValidateWindow проверяет допустимость окна занятия относительно now
func (r Rules) ValidateWindow(now time.Time, w Window) error {
	if w.Start.IsZero() || w.End.IsZero() {
		return windowErrorf("start time and end time are required")
	}
	if !w.IsValid() {
		return windowErrorf("end time must be after start time")
	}
	if !r.SameDay(w.Start, w.End) {
		return windowErrorf("session must start and end on the same day")
	}
	if !r.DayOf(w.Start).After(r.DayOf(now)) {
		return windowErrorf("sessions can only be booked from tomorrow onwards")
	}
	if r.IsClosed(w.Start) {
		return windowErrorf("sessions cannot be scheduled on %s", w.Start.In(r.loc()).Weekday())
	}

	start := r.clockOffset(w.Start)
	if start < r.Open || start > r.LatestStart {
		return windowErrorf("start time must be between %s and %s", clock(r.Open), clock(r.LatestStart))
	}

	end := r.clockOffset(w.End)
	if end <= r.Open || end > r.Close {
		return windowErrorf("end time must be after %s and no later than %s sharp", clock(r.Open), clock(r.Close))
	}

	return nil
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
