package domain

import (
	"fmt"
	"time"
)

// EnvironmentSample represents one irregularly-timed environmental diagnostic
// for a storm, currently the 850-200 hPa wind shear pair.
type EnvironmentSample struct {
	Timestamp         time.Time // diagnostic time (UTC)
	ShearMagnitudeKt  float64   // deep-layer shear magnitude (kt)
	ShearDirectionDeg float64   // deep-layer shear heading (deg)
}

// Validate checks structural validity of a sample.
func (s EnvironmentSample) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: sample timestamp is zero", ErrInvalidInput)
	}
	return nil
}

// InterpolatedEnvironmentPoint represents environmental values aligned to one
// time bin by nearest-neighbor join. Fields are nil when the nearest sample
// lies beyond the join tolerance; a stale value is never reused silently.
// Corresponds to the environment_points table in PostgreSQL.
type InterpolatedEnvironmentPoint struct {
	Timestamp         time.Time // bin midpoint (UTC)
	ShearMagnitudeKt  *float64  // NULL when no sample within tolerance
	ShearDirectionDeg *float64  // NULL when no sample within tolerance
}

// HasShear reports whether the point carries a shear value.
func (p InterpolatedEnvironmentPoint) HasShear() bool {
	return p.ShearMagnitudeKt != nil
}
