package spatial

import (
	"math"

	"github.com/paulmach/orb"
)

// Unit conversions shared by the radius policy and the box prefilter.
const (
	metersPerNmi    = 1852.0
	metersPerDegree = metersPerNmi * 60.0
)

// boundingBox returns the square degree-space prefilter box around a storm
// center. The half-size corrects for meridian convergence at the center
// latitude and carries a buffer factor so the box never clips observations
// that the exact geodesic cutoff would keep.
func boundingBox(centerLat, centerLon, radiusM, bufferFactor float64) orb.Bound {
	half := radiusM / math.Cos(centerLat*math.Pi/180) / metersPerDegree * bufferFactor
	return orb.Bound{
		Min: orb.Point{centerLon - half, centerLat - half},
		Max: orb.Point{centerLon + half, centerLat + half},
	}
}
