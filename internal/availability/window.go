package availability

import (
	"fmt"
	"time"
)

// Window полуоткрытый интервал [Start, End)
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewWindow(start time.Time, d time.Duration) Window {
	return Window{Start: start, End: start.Add(d)}
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) IsValid() bool {
	return w.End.After(w.Start)
}

// Overlaps окна имеют общий момент. Соприкасающиеся (a.End == b.Start) не пересекаются.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && w.End.After(o.Start)
}

// Expand расширяет окно на d с обеих сторон
func (w Window) Expand(d time.Duration) Window {
	return Window{Start: w.Start.Add(-d), End: w.End.Add(d)}
}

func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

func (w Window) In(loc *time.Location) Window {
	return Window{Start: w.Start.In(loc), End: w.End.In(loc)}
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
