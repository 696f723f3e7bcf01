// Package spatial aggregates point-cloud observations into per-bin,
// distance-filtered sets relative to the moving storm center.
package spatial

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/geodesy"
	"storm-align-lab/internal/ingestion"
	"storm-align-lab/internal/observability"
)

// Defaults for the aggregation run. 48 workers is the empirically efficient
// working point for the many small remote reads the source serves.
const (
	DefaultWorkers       = 48
	DefaultRMWMultiplier = 5.0
	DefaultBufferFactor  = 1.1
	DefaultBatchTimeout  = 2 * time.Minute
)

// Options contains configuration for creating an Aggregator.
type Options struct {
	Source        ingestion.ObservationSource
	Cache         *ingestion.BatchCache // shared within one storm's run, cleared between storms by the caller
	Workers       int                   // bounded fetch parallelism, default 48
	BatchTimeout  time.Duration         // per-batch fetch deadline, default 2m
	RMWMultiplier float64               // radius cutoff as a multiple of RMW, default 5
	BufferFactor  float64               // box prefilter inflation, default 1.1
	Logger        *log.Logger
}

// Aggregator computes per-bin observation aggregates around interpolated
// storm centers.
type Aggregator struct {
	source        ingestion.ObservationSource
	cache         *ingestion.BatchCache
	workers       int
	batchTimeout  time.Duration
	rmwMultiplier float64
	bufferFactor  float64
	logger        *log.Logger
}

// NewAggregator creates a new spatial aggregator.
func NewAggregator(opts Options) (*Aggregator, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: observation source is required", domain.ErrInvalidInput)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	batchTimeout := opts.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}
	rmwMultiplier := opts.RMWMultiplier
	if rmwMultiplier <= 0 {
		rmwMultiplier = DefaultRMWMultiplier
	}
	bufferFactor := opts.BufferFactor
	if bufferFactor < 1 {
		bufferFactor = DefaultBufferFactor
	}
	cache := opts.Cache
	if cache == nil {
		cache = ingestion.NewBatchCache()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Aggregator{
		source:        opts.Source,
		cache:         cache,
		workers:       workers,
		batchTimeout:  batchTimeout,
		rmwMultiplier: rmwMultiplier,
		bufferFactor:  bufferFactor,
		logger:        logger,
	}, nil
}

// Aggregate produces one BinAggregate per bin, in bin order. centers must be
// the interpolated track points for the same bins, index-matched.
//
// Batch fetch failures and timeouts are logged and contribute zero
// observations; they never abort sibling batches or bins. A bin whose center
// carries no radius of maximum winds is skipped with an empty aggregate.
func (a *Aggregator) Aggregate(ctx context.Context, stormCode string, bins []domain.TimeBin, centers []domain.InterpolatedTrackPoint) ([]domain.BinAggregate, error) {
	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: no bins", domain.ErrInvalidInput)
	}
	if len(centers) != len(bins) {
		return nil, fmt.Errorf("%w: %d centers for %d bins", domain.ErrInvalidInput, len(centers), len(bins))
	}

	aggregates := make([]domain.BinAggregate, 0, len(bins))
	for i, bin := range bins {
		center := centers[i]
		agg := domain.BinAggregate{
			StormCode: stormCode,
			Bin:       bin,
			CenterLat: center.Lat,
			CenterLon: center.Lon,
		}

		if center.RadiusMaxWindNmi <= 0 {
			a.logger.Printf("storm %s bin %s: no radius of maximum winds, skipping", stormCode, bin.Midpoint.Format(time.RFC3339))
			observability.RecordBinSkippedNoRMW()
			aggregates = append(aggregates, agg)
			continue
		}

		radiusM := a.rmwMultiplier * center.RadiusMaxWindNmi * metersPerNmi
		agg.RadiusM = radiusM
		box := boundingBox(center.Lat, center.Lon, radiusM, a.bufferFactor)

		handles, err := a.source.ListBatches(ctx, ingestion.TimeWindow{Start: bin.Start, End: bin.End})
		if err != nil {
			// The whole bin becomes an empty contribution; siblings proceed.
			a.logger.Printf("storm %s bin %s: list batches: %v", stormCode, bin.Midpoint.Format(time.RFC3339), err)
			observability.RecordSourceError("observation", "list")
			aggregates = append(aggregates, agg)
			continue
		}

		agg.Observations = a.collectBatches(ctx, stormCode, bin, center, radiusM, box, handles)
		observability.RecordBinAggregated(len(agg.Observations))
		observability.UpdateBatchCacheSize(a.cache.Len())
		aggregates = append(aggregates, agg)
	}
	return aggregates, nil
}

// collectBatches fans fetch+filter of one bin's candidate batches across the
// bounded worker pool and joins before returning, so results always land in
// bin order regardless of fetch completion order.
func (a *Aggregator) collectBatches(ctx context.Context, stormCode string, bin domain.TimeBin, center domain.InterpolatedTrackPoint, radiusM float64, box orb.Bound, handles []ingestion.BatchHandle) []domain.BinObservation {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		kept []domain.BinObservation
	)
	sem := make(chan struct{}, a.workers)

	for _, h := range handles {
		wg.Add(1)
		sem <- struct{}{}
		go func(h ingestion.BatchHandle) {
			defer wg.Done()
			defer func() { <-sem }()

			obs, err := a.fetchBatch(ctx, h)
			if err != nil {
				a.logger.Printf("storm %s batch %s: %v (skipped)", stormCode, h.ID, err)
				return
			}

			filtered := filterBatch(obs, bin, center, radiusM, box)
			if len(filtered) == 0 {
				return
			}
			mu.Lock()
			kept = append(kept, filtered...)
			mu.Unlock()
		}(h)
	}
	wg.Wait()

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Timestamp.Equal(kept[j].Timestamp) {
			return kept[i].ID < kept[j].ID
		}
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})
	return kept
}

// fetchBatch reads one batch through the write-once cache under the
// per-batch timeout.
func (a *Aggregator) fetchBatch(ctx context.Context, h ingestion.BatchHandle) ([]domain.Observation, error) {
	if obs, ok := a.cache.Get(h.ID); ok {
		observability.RecordBatchCacheHit()
		return obs, nil
	}

	batchCtx, cancel := context.WithTimeout(ctx, a.batchTimeout)
	defer cancel()

	start := time.Now()
	obs, err := a.source.ReadBatch(batchCtx, h)
	observability.RecordBatchFetch(time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%w: read batch %s: %v", domain.ErrSourceUnavailable, h.ID, err)
	}

	a.cache.Put(h.ID, obs)
	return obs, nil
}

// filterBatch applies the cheap box prefilter, the bin's exact time window,
// and the exact geodesic cutoff, annotating survivors with their distance
// and bearing from the bin's interpolated center.
func filterBatch(obs []domain.Observation, bin domain.TimeBin, center domain.InterpolatedTrackPoint, radiusM float64, box orb.Bound) []domain.BinObservation {
	var kept []domain.BinObservation
	for _, o := range obs {
		if !box.Contains(orb.Point{o.Lon, o.Lat}) {
			continue
		}
		if !bin.Contains(o.Timestamp) {
			continue
		}
		distM, bearingDeg := geodesy.Inverse(center.Lat, center.Lon, o.Lat, o.Lon)
		if distM >= radiusM {
			continue
		}
		kept = append(kept, domain.BinObservation{
			Observation: o,
			DistanceM:   distM,
			BearingDeg:  bearingDeg,
		})
	}
	return kept
}
