package domain

import (
	"fmt"
	"time"
)

// Storm status code reported on a best-track fix while at hurricane intensity.
const StatusHurricane = "HU"

// TrackFix represents one irregularly-timed best-track observation.
// The track source is authoritative; fixes are read-only input to alignment.
type TrackFix struct {
	Timestamp        time.Time // observation time (UTC)
	Lat              float64   // degrees north
	Lon              float64   // degrees east
	Status           string    // system status code: HU, TS, TD, ...
	MaxWindKt        float64   // maximum sustained wind (kt)
	MinPressureMb    float64   // minimum central pressure (mb), 0 if unreported
	RadiusMaxWindNmi float64   // radius of maximum winds (nmi), 0 if unreported
}

// Validate checks structural validity of a single fix.
func (f TrackFix) Validate() error {
	if f.Timestamp.IsZero() {
		return fmt.Errorf("%w: fix timestamp is zero", ErrInvalidInput)
	}
	if f.Lat < -90 || f.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, f.Lat)
	}
	if f.Lon < -180 || f.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, f.Lon)
	}
	return nil
}

// InterpolatedTrackPoint represents the storm state aligned to one time bin.
// Lat/lon are linearly interpolated; motion direction is derived, and the
// remaining fields are nearest-neighbor copies of the closest fix.
// Corresponds to the track_points table in PostgreSQL.
type InterpolatedTrackPoint struct {
	Timestamp          time.Time // bin midpoint (UTC)
	Lat                float64   // degrees north
	Lon                float64   // degrees east
	MotionDirectionDeg float64   // storm heading over the bin, [0, 360)
	Status             string    // nearest-fix status code
	MaxWindKt          float64   // nearest-fix maximum sustained wind (kt)
	MinPressureMb      float64   // nearest-fix minimum pressure (mb)
	RadiusMaxWindNmi   float64   // nearest-fix radius of maximum winds (nmi)
}
