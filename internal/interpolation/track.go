package interpolation

import (
	"fmt"
	"sort"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/geodesy"
)

// Track aligns best-track fixes onto the bin grid, one point per bin.
//
// Lat/lon are linearly interpolated at the bin midpoint and clamped to the
// endpoint values outside the fix range. Motion direction is the initial
// bearing from the interpolated position at bin start to the one at bin end.
// Status, wind, pressure and RMW are nearest-neighbor copies of the closest
// fix with no tolerance limit; the track source is dense enough that the
// nearest fix is always considered fresh. Ties go to the earlier fix.
//
// Fixes need not arrive sorted; they are sorted by timestamp internally.
func Track(fixes []domain.TrackFix, bins []domain.TimeBin) ([]domain.InterpolatedTrackPoint, error) {
	if len(fixes) == 0 {
		return nil, fmt.Errorf("%w: no track fixes", domain.ErrInvalidInput)
	}
	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: no bins", domain.ErrInvalidInput)
	}
	for i, f := range fixes {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("fix %d: %w", i, err)
		}
	}
	for i, b := range bins {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("bin %d: %w", i, err)
		}
	}

	sorted := make([]domain.TrackFix, len(fixes))
	copy(sorted, fixes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	xs := make([]float64, len(sorted))
	lats := make([]float64, len(sorted))
	lons := make([]float64, len(sorted))
	for i, f := range sorted {
		xs[i] = seconds(f.Timestamp)
		lats[i] = f.Lat
		lons[i] = f.Lon
	}

	points := make([]domain.InterpolatedTrackPoint, len(bins))
	for i, bin := range bins {
		mid := seconds(bin.Midpoint)

		startLat := linearAt(xs, lats, seconds(bin.Start))
		startLon := linearAt(xs, lons, seconds(bin.Start))
		endLat := linearAt(xs, lats, seconds(bin.End))
		endLon := linearAt(xs, lons, seconds(bin.End))
		_, bearing := geodesy.Inverse(startLat, startLon, endLat, endLon)

		nearest := sorted[nearestIndex(xs, mid)]

		points[i] = domain.InterpolatedTrackPoint{
			Timestamp:          bin.Midpoint,
			Lat:                linearAt(xs, lats, mid),
			Lon:                linearAt(xs, lons, mid),
			MotionDirectionDeg: bearing,
			Status:             nearest.Status,
			MaxWindKt:          nearest.MaxWindKt,
			MinPressureMb:      nearest.MinPressureMb,
			RadiusMaxWindNmi:   nearest.RadiusMaxWindNmi,
		}
	}
	return points, nil
}
