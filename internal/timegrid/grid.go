// Package timegrid builds the per-storm temporal alignment grid.
//
// Bins are phase-aligned to interval/2 offsets within the hour rather than to
// the storm's own start time, so grids with the same interval are comparable
// across storms and sources: 30-minute bins always center on :15 and :45.
package timegrid

import (
	"fmt"
	"time"

	"storm-align-lab/internal/domain"
)

// MakeBins returns the ordered bin grid covering [stormStart, stormEnd).
// Midpoints are emitted at fixed interval spacing while midpoint < stormEnd;
// each bin spans midpoint +/- interval/2. A window too short to contain a
// phase-aligned midpoint yields an empty grid, which is valid output.
func MakeBins(stormStart, stormEnd time.Time, interval time.Duration) ([]domain.TimeBin, error) {
	if err := validateInterval(interval); err != nil {
		return nil, err
	}
	if stormEnd.Before(stormStart) {
		return nil, fmt.Errorf("%w: storm end %v before start %v", domain.ErrInvalidInput, stormEnd, stormStart)
	}

	first := firstMidpoint(stormStart, interval)

	var bins []domain.TimeBin
	half := interval / 2
	for curr := first; curr.Before(stormEnd); curr = curr.Add(interval) {
		bins = append(bins, domain.TimeBin{
			Start:    curr.Add(-half),
			Midpoint: curr,
			End:      curr.Add(half),
		})
	}
	return bins, nil
}

// firstMidpoint finds the earliest phase-aligned midpoint at or after start.
func firstMidpoint(start time.Time, interval time.Duration) time.Time {
	intervalMin := int(interval / time.Minute)
	halfMin := intervalMin / 2

	// Work from the whole minute; sub-minute components only matter for the
	// not-before-start check below.
	base := start.Truncate(time.Minute)
	offset := (halfMin - base.Minute()) % intervalMin
	if offset < 0 {
		offset += intervalMin
	}

	first := base.Add(time.Duration(offset) * time.Minute)
	if first.Before(start) {
		first = first.Add(interval)
	}
	return first
}

// validateInterval enforces the supported bin widths: a positive whole even
// number of minutes that divides the hour, so that midpoint phase alignment
// is exact.
func validateInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: interval %v not positive", domain.ErrInvalidInput, interval)
	}
	min := int(interval / time.Minute)
	if time.Duration(min)*time.Minute != interval || min%2 != 0 {
		return fmt.Errorf("%w: interval %v is not a whole even number of minutes", domain.ErrInvalidInput, interval)
	}
	if 60%min != 0 {
		return fmt.Errorf("%w: interval %v does not divide the hour", domain.ErrInvalidInput, interval)
	}
	return nil
}
