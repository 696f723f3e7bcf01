// Package summary derives radial banding statistics from aggregated
// observations, downstream of the per-storm alignment run.
package summary

import (
	"sort"
	"time"

	"storm-align-lab/internal/domain"
)

// InnerCoreRMWMultiple bounds the inner-core band: an observation is
// inner-core when its distance from the storm center is under this multiple
// of the radius of maximum winds.
const InnerCoreRMWMultiple = 1.5

const metersPerNmi = 1852.0

// BinBands partitions one bin's kept observations by distance from the
// interpolated storm center.
type BinBands struct {
	Midpoint     time.Time
	Observations int
	InnerCore    int     // distance < InnerCoreRMWMultiple x RMW
	OuterBand    int     // remainder, out to the search radius
	EnergyJ      float64 // summed radiant group energy
}

// StormBands is the bin-ordered banding table for one storm, with totals.
type StormBands struct {
	StormCode    string
	Bins         []BinBands
	Observations int
	InnerCore    int
	OuterBand    int
	EnergyJ      float64
}

// Compute bands every aggregate against the radius of maximum winds carried
// by the track point at the same midpoint. Bins whose track point reports no
// radius keep all their observations in the outer band.
func Compute(stormCode string, aggregates []domain.BinAggregate, track []domain.InterpolatedTrackPoint) *StormBands {
	rmwByMidpoint := make(map[int64]float64, len(track))
	for _, p := range track {
		rmwByMidpoint[p.Timestamp.UnixMilli()] = p.RadiusMaxWindNmi
	}

	bands := &StormBands{
		StormCode: stormCode,
		Bins:      make([]BinBands, 0, len(aggregates)),
	}
	for _, agg := range aggregates {
		bin := BinBands{Midpoint: agg.Bin.Midpoint}
		innerM := InnerCoreRMWMultiple * rmwByMidpoint[agg.Bin.Midpoint.UnixMilli()] * metersPerNmi
		for _, obs := range agg.Observations {
			bin.Observations++
			bin.EnergyJ += obs.EnergyJ
			if innerM > 0 && obs.DistanceM < innerM {
				bin.InnerCore++
			} else {
				bin.OuterBand++
			}
		}
		bands.Bins = append(bands.Bins, bin)
		bands.Observations += bin.Observations
		bands.InnerCore += bin.InnerCore
		bands.OuterBand += bin.OuterBand
		bands.EnergyJ += bin.EnergyJ
	}

	sort.Slice(bands.Bins, func(i, j int) bool {
		return bands.Bins[i].Midpoint.Before(bands.Bins[j].Midpoint)
	})
	return bands
}
