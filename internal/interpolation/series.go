// Package interpolation aligns irregular per-storm time series onto a bin
// grid: piecewise-linear interpolation for continuous position, and
// nearest-neighbor joins (with and without tolerance) for everything else.
package interpolation

import (
	"sort"
	"time"
)

// seconds places a timestamp on the numeric time axis used for
// interpolation and nearest-neighbor distance.
func seconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}

// linearAt returns the piecewise-linear interpolant of (xs, ys) at x.
// xs must be sorted ascending. Outside the range of xs the nearest endpoint
// value is returned; no extrapolation.
func linearAt(xs, ys []float64, x float64) float64 {
	n := len(xs)
	i := sort.SearchFloat64s(xs, x)
	switch {
	case i == 0:
		return ys[0]
	case i == n:
		return ys[n-1]
	case xs[i] == x:
		return ys[i]
	}
	x0, x1 := xs[i-1], xs[i]
	if x1 == x0 {
		// Duplicate timestamps; take the later record.
		return ys[i]
	}
	frac := (x - x0) / (x1 - x0)
	return ys[i-1] + frac*(ys[i]-ys[i-1])
}

// nearestIndex returns the index of the xs entry closest to x.
// xs must be sorted ascending and non-empty. Ties go to the earlier entry.
func nearestIndex(xs []float64, x float64) int {
	n := len(xs)
	i := sort.SearchFloat64s(xs, x)
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	if x-xs[i-1] <= xs[i]-x {
		return i - 1
	}
	return i
}
