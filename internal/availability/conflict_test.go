package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConflictsBuffer(t *testing.T) {
	rules := DefaultRules(time.UTC)
	existing := []Window{{at(16, 10, 0), at(16, 11, 0)}}

	tests := []struct {
		name      string
		candidate Window
		want      bool
	}{
		{name: "starts exactly one buffer after", candidate: NewWindow(at(16, 11, 15), time.Hour), want: false},
		{name: "starts one minute inside buffer", candidate: NewWindow(at(16, 11, 14), time.Hour), want: true},
		{name: "ends exactly one buffer before", candidate: NewWindow(at(16, 8, 45), time.Hour), want: false},
		{name: "ends inside leading buffer", candidate: NewWindow(at(16, 8, 46), time.Hour), want: true},
		{name: "direct overlap", candidate: NewWindow(at(16, 10, 30), time.Hour), want: true},
		{name: "contains existing", candidate: Window{at(16, 9, 0), at(16, 12, 0)}, want: true},
		{name: "far away", candidate: NewWindow(at(16, 15, 0), time.Hour), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Conflicts(tt.candidate, existing, rules))
		})
	}
}

func TestConflictsBlackoutAfterBackToBack(t *testing.T) {
	rules := DefaultRules(time.UTC)
	// 10:00-11:00 и 11:15-12:15 подряд, перерыв 12:15-13:15
	existing := []Window{
		{at(16, 11, 15), at(16, 12, 15)},
		{at(16, 10, 0), at(16, 11, 0)},
	}

	assert.True(t, Conflicts(NewWindow(at(16, 12, 30), time.Hour), existing, rules), "buffer still applies")
	assert.True(t, Conflicts(NewWindow(at(16, 13, 0), time.Hour), existing, rules), "inside blackout")
	assert.False(t, Conflicts(NewWindow(at(16, 13, 15), time.Hour), existing, rules), "blackout is over")

	// без пары тот же кандидат свободен
	assert.False(t, Conflicts(NewWindow(at(16, 13, 0), time.Hour), existing[:1], rules))
}

func TestBlackoutsIgnoresSpacedSessions(t *testing.T) {
	rules := DefaultRules(time.UTC)
	existing := []Window{
		{at(16, 10, 0), at(16, 11, 0)},
		{at(16, 11, 16), at(16, 12, 0)},
	}

	assert.Empty(t, Blackouts(existing, rules))
	assert.Empty(t, Blackouts(existing[:1], rules))
}

func TestBlackoutsDoesNotMutateInput(t *testing.T) {
	rules := DefaultRules(time.UTC)
	existing := []Window{
		{at(16, 11, 15), at(16, 12, 15)},
		{at(16, 10, 0), at(16, 11, 0)},
	}
	first := existing[0]

	got := Blackouts(existing, rules)

	assert.Equal(t, []Window{{at(16, 12, 15), at(16, 13, 15)}}, got)
	assert.Equal(t, first, existing[0])
}

func TestFirstConflict(t *testing.T) {
	existing := []Window{{at(16, 10, 0), at(16, 11, 0)}}

	w, ok := FirstConflict(NewWindow(at(16, 11, 5), time.Hour), existing, DefaultBuffer)
	assert.True(t, ok)
	assert.Equal(t, existing[0], w)

	_, ok = FirstConflict(NewWindow(at(16, 14, 0), time.Hour), existing, DefaultBuffer)
	assert.False(t, ok)
}
