package availability

import (
	"iter"
	"slices"
	"time"
)

// Slots свободные окна длины duration в календарный день date. Кандидаты идут
// по сетке rules.Step от Open, последний старт не позже LatestStart и
// Close-duration (включительно, если попадает на сетку). Отдаются кандидаты
// без конфликтов с existing.
//
// Последовательность ленивая и перезапускаемая: каждый range считает заново.
func Slots(date time.Time, duration time.Duration, existing []Window, rules Rules) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		if duration <= 0 || rules.Step <= 0 {
			return
		}

		latest := min(rules.Close-duration, rules.LatestStart)
		for offset := rules.Open; offset <= latest; offset += rules.Step {
			candidate := NewWindow(rules.At(date, offset), duration)
			if Conflicts(candidate, existing, rules) {
				continue
			}
			if !yield(candidate) {
				return
			}
		}
	}
}

// MergeSlots объединяет окна нескольких учителей: по возрастанию начала, без дублей
func MergeSlots(sets ...[]Window) []Window {
	var all []Window
	for _, s := range sets {
		all = append(all, s...)
	}

	slices.SortFunc(all, func(a, b Window) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})

	return slices.CompactFunc(all, func(a, b Window) bool {
		return a.Equal(b)
	})
}
