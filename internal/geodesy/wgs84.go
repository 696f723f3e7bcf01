// Package geodesy computes inverse geodesics on the WGS84 ellipsoid.
package geodesy

import "math"

// WGS84 ellipsoid parameters.
const (
	semiMajorM = 6378137.0
	flattening = 1.0 / 298.257223563
	semiMinorM = semiMajorM * (1.0 - flattening)
)

const (
	convergence   = 1e-12
	maxIterations = 200
)

// Inverse returns the geodesic distance in meters and the initial bearing in
// degrees, normalized to [0, 360), from point 1 to point 2 on WGS84.
// Vincenty's inverse formula; the rare non-converging near-antipodal pair
// falls back to a spherical great circle, far outside storm-scale distances.
func Inverse(lat1, lon1, lat2, lon2 float64) (distanceM, bearingDeg float64) {
	if lat1 == lat2 && lon1 == lon2 {
		return 0, 0
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	l := (lon2 - lon1) * math.Pi / 180

	u1 := math.Atan((1 - flattening) * math.Tan(phi1))
	u2 := math.Atan((1 - flattening) * math.Tan(phi2))
	sinU1, cosU1 := math.Sincos(u1)
	sinU2, cosU2 := math.Sincos(u2)

	lambda := l
	var sinLambda, cosLambda float64
	var sinSigma, cosSigma, sigma float64
	var cos2Alpha, cos2SigmaM float64

	converged := false
	for i := 0; i < maxIterations; i++ {
		sinLambda, cosLambda = math.Sincos(lambda)
		sinSigma = math.Sqrt(sq(cosU2*sinLambda) + sq(cosU1*sinU2-sinU1*cosU2*cosLambda))
		if sinSigma == 0 {
			return 0, 0
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)

		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cos2Alpha = 1 - sq(sinAlpha)
		if cos2Alpha == 0 {
			// Equatorial line.
			cos2SigmaM = 0
		} else {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cos2Alpha
		}

		c := flattening / 16 * cos2Alpha * (4 + flattening*(4-3*cos2Alpha))
		prev := lambda
		lambda = l + (1-c)*flattening*sinAlpha*
			(sigma+c*sinSigma*(cos2SigmaM+c*cosSigma*(-1+2*sq(cos2SigmaM))))
		if math.Abs(lambda-prev) < convergence {
			converged = true
			break
		}
	}
	if !converged {
		return sphericalInverse(phi1, phi2, l)
	}

	uSq := cos2Alpha * (sq(semiMajorM) - sq(semiMinorM)) / sq(semiMinorM)
	a := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	b := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := b * sinSigma * (cos2SigmaM + b/4*
		(cosSigma*(-1+2*sq(cos2SigmaM))-b/6*cos2SigmaM*(-3+4*sq(sinSigma))*(-3+4*sq(cos2SigmaM))))

	distanceM = semiMinorM * a * (sigma - deltaSigma)
	alpha1 := math.Atan2(cosU2*sinLambda, cosU1*sinU2-sinU1*cosU2*cosLambda)
	return distanceM, NormalizeBearing(alpha1 * 180 / math.Pi)
}

// sphericalInverse is the great-circle fallback on the mean-radius sphere.
func sphericalInverse(phi1, phi2, l float64) (float64, float64) {
	const meanRadiusM = 6371008.8

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	sinPhi2, cosPhi2 := math.Sincos(phi2)
	sinL, cosL := math.Sincos(l)

	sigma := math.Acos(clamp(sinPhi1*sinPhi2+cosPhi1*cosPhi2*cosL, -1, 1))
	alpha1 := math.Atan2(cosPhi2*sinL, cosPhi1*sinPhi2-sinPhi1*cosPhi2*cosL)
	return meanRadiusM * sigma, NormalizeBearing(alpha1 * 180 / math.Pi)
}

// NormalizeBearing maps a bearing in degrees onto [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func sq(x float64) float64 { return x * x }

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
