package analytics

import (
	"fmt"
	"time"
)

// Window is an inclusive calendar-day range. The zero Window is unbounded.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: Day(start), End: Day(end)}
	if w.Start.After(w.End) {
		return Window{}, fmt.Errorf("%w: window start %s after end %s", ErrInvalidRequest,
			w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
	}
	return w, nil
}

// LastYears returns the window covering the n calendar years ending on now.
func LastYears(now time.Time, years int) (Window, error) {
	if years <= 0 {
		return Window{}, fmt.Errorf("%w: years must be positive, got %d", ErrInvalidRequest, years)
	}
	end := Day(now)
	return Window{Start: end.AddDate(-years, 0, 0), End: end}, nil
}

// LastDays returns the window covering the n calendar days ending on now.
func LastDays(now time.Time, days int) (Window, error) {
	if days <= 0 {
		return Window{}, fmt.Errorf("%w: days must be positive, got %d", ErrInvalidRequest, days)
	}
	end := Day(now)
	return Window{Start: end.AddDate(0, 0, -days), End: end}, nil
}

func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

func (w Window) Contains(t time.Time) bool {
	if w.IsZero() {
		return true
	}
	d := Day(t)
	if !w.Start.IsZero() && d.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && d.After(w.End) {
		return false
	}
	return true
}

func (w Window) String() string {
	if w.IsZero() {
		return "all"
	}
	return w.Start.Format(time.DateOnly) + ".." + w.End.Format(time.DateOnly)
}
