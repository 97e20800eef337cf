package availability

import (
	"slices"
	"time"
)

// Conflicts окно-кандидат сталкивается с занятиями учителя. Достаточно одного:
//
//   - пересечение с занятием, расширенным на rules.Buffer с обеих сторон;
//   - пересечение с перерывом после двух занятий подряд (см. Blackouts).
func Conflicts(candidate Window, existing []Window, rules Rules) bool {
	for _, e := range existing {
		if candidate.Overlaps(e.Expand(rules.Buffer)) {
			return true
		}
	}
	for _, b := range Blackouts(existing, rules) {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// Blackouts перерывы длиной rules.Blackout, начинающиеся с конца второго занятия
// каждой пары подряд. Пара считается подряд, если второе начинается не позже
// чем через rules.Buffer после конца первого. Входной срез не меняется.
func Blackouts(existing []Window, rules Rules) []Window {
	if len(existing) < 2 || rules.Blackout <= 0 {
		return nil
	}

	sorted := slices.Clone(existing)
	slices.SortFunc(sorted, func(a, b Window) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})

	var out []Window
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			first, second := sorted[i], sorted[j]
			if second.Start.Sub(first.End) > rules.Buffer {
				continue
			}
			out = append(out, Window{Start: second.End, End: second.End.Add(rules.Blackout)})
		}
	}
	return out
}

// FirstConflict первое занятие, с которым кандидат пересекается с учётом буфера.
// false, если мешает только перерыв или ничего.
func FirstConflict(candidate Window, existing []Window, buffer time.Duration) (Window, bool) {
	for _, e := range existing {
		if candidate.Overlaps(e.Expand(buffer)) {
			return e, true
		}
	}
	return Window{}, false
}
