package interpolation

import (
	"fmt"
	"sort"
	"time"

	"storm-align-lab/internal/domain"
)

// Environment aligns environmental samples onto the bin grid by
// nearest-neighbor join with a tolerance, one point per bin.
//
// A bin whose nearest sample lies farther than tolerance from the midpoint
// gets nil values rather than a stale copy; the boundary is inclusive, so a
// sample exactly tolerance away is still used. Every bin yields exactly one
// output row; an empty sample set produces all-missing rows, not an error.
func Environment(samples []domain.EnvironmentSample, bins []domain.TimeBin, tolerance time.Duration) ([]domain.InterpolatedEnvironmentPoint, error) {
	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: no bins", domain.ErrInvalidInput)
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("%w: negative tolerance %v", domain.ErrInvalidInput, tolerance)
	}
	for i, s := range samples {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}

	points := make([]domain.InterpolatedEnvironmentPoint, len(bins))
	for i, bin := range bins {
		points[i] = domain.InterpolatedEnvironmentPoint{Timestamp: bin.Midpoint}
	}
	if len(samples) == 0 {
		return points, nil
	}

	sorted := make([]domain.EnvironmentSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	xs := make([]float64, len(sorted))
	for i, s := range sorted {
		xs[i] = seconds(s.Timestamp)
	}

	tolSec := tolerance.Seconds()
	for i, bin := range bins {
		mid := seconds(bin.Midpoint)
		s := sorted[nearestIndex(xs, mid)]

		gap := mid - seconds(s.Timestamp)
		if gap < 0 {
			gap = -gap
		}
		if gap > tolSec {
			continue
		}

		mag := s.ShearMagnitudeKt
		dir := s.ShearDirectionDeg
		points[i].ShearMagnitudeKt = &mag
		points[i].ShearDirectionDeg = &dir
	}
	return points, nil
}
