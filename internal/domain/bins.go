package domain

import (
	"fmt"
	"time"
)

// TimeBin is one fixed-width interval of the per-storm alignment grid.
// Bins are immutable once created; a grid is a contiguous, strictly
// increasing sequence of bins at a fixed interval.
type TimeBin struct {
	Start    time.Time // inclusive window start (UTC)
	Midpoint time.Time // bin center, the alignment timestamp
	End      time.Time // exclusive window end (UTC)
}

// Interval returns the bin width.
func (b TimeBin) Interval() time.Duration {
	return b.End.Sub(b.Start)
}

// Contains reports whether t falls inside the bin's half-open window.
func (b TimeBin) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// Validate checks the bin's internal invariants: start < midpoint < end and
// the midpoint exactly centered.
func (b TimeBin) Validate() error {
	if !b.Start.Before(b.Midpoint) || !b.Midpoint.Before(b.End) {
		return fmt.Errorf("%w: bin endpoints not ordered around midpoint", ErrInvalidInput)
	}
	if b.Midpoint.Sub(b.Start) != b.End.Sub(b.Midpoint) {
		return fmt.Errorf("%w: bin midpoint not centered", ErrInvalidInput)
	}
	return nil
}
