package availability

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsEmptyDay(t *testing.T) {
	rules := DefaultRules(time.UTC)

	slots := slices.Collect(Slots(at(16, 0, 0), time.Hour, nil, rules))

	// 09:00 .. 19:45 с шагом 15 минут; часовое занятие в 19:45 заканчивается в 20:45
	require.Len(t, slots, 44)
	assert.Equal(t, NewWindow(at(16, 9, 0), time.Hour), slots[0])
	assert.Equal(t, NewWindow(at(16, 19, 45), time.Hour), slots[len(slots)-1])
	for _, s := range slots {
		assert.NoError(t, rules.ValidateWindow(testNow, s), s.String())
	}
}

func TestSlotsClosingBoundary(t *testing.T) {
	rules := DefaultRules(time.UTC)
	rules.LatestStart = rules.Close

	t.Run("on grid is inclusive", func(t *testing.T) {
		slots := slices.Collect(Slots(at(16, 0, 0), 2*time.Hour, nil, rules))
		require.NotEmpty(t, slots)
		assert.Equal(t, at(16, 21, 0), slots[len(slots)-1].End)
	})

	t.Run("off grid is exclusive", func(t *testing.T) {
		slots := slices.Collect(Slots(at(16, 0, 0), 50*time.Minute, nil, rules))
		require.NotEmpty(t, slots)
		last := slots[len(slots)-1]
		assert.Equal(t, at(16, 20, 0), last.Start)
		assert.False(t, last.End.After(at(16, 21, 0)))
	})
}

func TestSlotsSkipConflicts(t *testing.T) {
	rules := DefaultRules(time.UTC)
	existing := []Window{{at(16, 10, 0), at(16, 11, 0)}}

	slots := slices.Collect(Slots(at(16, 0, 0), time.Hour, existing, rules))

	for _, s := range slots {
		assert.False(t, Conflicts(s, existing, rules), s.String())
	}
	starts := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		starts = append(starts, s.Start)
	}
	assert.NotContains(t, starts, at(16, 9, 0))
	assert.NotContains(t, starts, at(16, 11, 0))
	assert.Contains(t, starts, at(16, 11, 15))
}

func TestSlotsRestartable(t *testing.T) {
	rules := DefaultRules(time.UTC)
	seq := Slots(at(16, 0, 0), 90*time.Minute, nil, rules)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	var taken []Window
	for w := range seq {
		taken = append(taken, w)
		if len(taken) == 3 {
			break
		}
	}
	assert.Equal(t, first[:3], taken)
}

func TestSlotsInvalidDuration(t *testing.T) {
	rules := DefaultRules(time.UTC)

	assert.Empty(t, slices.Collect(Slots(at(16, 0, 0), 0, nil, rules)))
	assert.Empty(t, slices.Collect(Slots(at(16, 0, 0), 13*time.Hour, nil, rules)))
}

func TestMergeSlots(t *testing.T) {
	a := []Window{NewWindow(at(16, 9, 0), time.Hour), NewWindow(at(16, 10, 0), time.Hour)}
	b := []Window{NewWindow(at(16, 9, 30), time.Hour), NewWindow(at(16, 9, 0), time.Hour)}

	merged := MergeSlots(a, b, nil)

	assert.Equal(t, []Window{
		NewWindow(at(16, 9, 0), time.Hour),
		NewWindow(at(16, 9, 30), time.Hour),
		NewWindow(at(16, 10, 0), time.Hour),
	}, merged)
}
