package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"storm-align-lab/internal/discovery"
	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// Runner ingests best-track fixes and environment diagnostics for every
// storm in the population index. It is idempotent: re-running over an
// already-ingested basin counts duplicates instead of failing.
type Runner struct {
	census      *discovery.Census
	tracks      TrackSource
	environment EnvironmentSource
	storms      storage.StormStore
	fixes       storage.TrackFixStore
	samples     storage.EnvironmentSampleStore
	logger      *log.Logger
}

// RunnerOptions configures an ingest runner.
type RunnerOptions struct {
	// Census refreshes the population index before ingesting. Optional;
	// when nil the index is consumed as-is.
	Census *discovery.Census

	// Tracks supplies per-storm fix series. Optional; nil skips fixes.
	Tracks TrackSource

	// Environment supplies per-storm diagnostic samples. Optional; nil
	// skips samples.
	Environment EnvironmentSource

	// Storms is the population index to ingest from. Required.
	Storms storage.StormStore

	// Fixes receives track fix series. Required when Tracks is set.
	Fixes storage.TrackFixStore

	// Samples receives environment samples. Required when Environment is set.
	Samples storage.EnvironmentSampleStore

	// Logger for progress output. Defaults to log.Default().
	Logger *log.Logger
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	StormsDiscovered  int
	StormsProcessed   int
	FixesIngested     int
	SamplesIngested   int
	DuplicatesSkipped int
	Errors            int
	Duration          time.Duration
}

// NewRunner creates an ingest runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Storms == nil {
		return nil, fmt.Errorf("storm store is required")
	}
	if opts.Tracks != nil && opts.Fixes == nil {
		return nil, fmt.Errorf("track fix store is required when a track source is set")
	}
	if opts.Environment != nil && opts.Samples == nil {
		return nil, fmt.Errorf("environment sample store is required when an environment source is set")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Runner{
		census:      opts.Census,
		tracks:      opts.Tracks,
		environment: opts.Environment,
		storms:      opts.Storms,
		fixes:       opts.Fixes,
		samples:     opts.Samples,
		logger:      opts.Logger,
	}, nil
}

// Run refreshes the population index for one basin and ingests raw series
// for every indexed storm. Individual storm failures are counted and
// logged, not fatal; the error return covers failures that invalidate the
// whole run.
func (r *Runner) Run(ctx context.Context, basin domain.Basin) (*IngestResult, error) {
	start := time.Now()
	result := &IngestResult{}

	r.logger.Printf("Starting ingest run: basin=%s", basin)

	if r.census != nil {
		discovered, err := r.census.Run(ctx, basin)
		if err != nil {
			return result, fmt.Errorf("storm census: %w", err)
		}
		result.StormsDiscovered = len(discovered)
	}

	storms, err := r.storms.ListByBasin(ctx, basin)
	if err != nil {
		return result, fmt.Errorf("failed to list storms: %w", err)
	}

	var lastFixMs int64
	for _, storm := range storms {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		stormLast := r.ingestStorm(ctx, storm, result)
		if stormLast > lastFixMs {
			lastFixMs = stormLast
		}
		result.StormsProcessed++
	}

	if r.census != nil && lastFixMs > 0 {
		if err := r.census.SaveProgress(ctx, basin, lastFixMs); err != nil {
			r.logger.Printf("Warning: failed to save ingest progress: %v", err)
		}
	}

	result.Duration = time.Since(start)
	r.logger.Printf("Ingest complete: storms=%d fixes=%d samples=%d duplicates=%d errors=%d duration=%s",
		result.StormsProcessed, result.FixesIngested, result.SamplesIngested,
		result.DuplicatesSkipped, result.Errors, result.Duration.Round(time.Millisecond))

	return result, nil
}

// ingestStorm fetches and stores both raw series for one storm, and
// returns the newest fix timestamp in epoch milliseconds (0 when no fixes
// were ingested). Fix stores reject batches touching existing timestamps
// wholesale, so a duplicate batch counts every row as skipped.
func (r *Runner) ingestStorm(ctx context.Context, storm *domain.Storm, result *IngestResult) int64 {
	var lastMs int64

	if r.tracks != nil {
		fixes, err := r.tracks.FetchTrackFixes(ctx, storm.Code)
		switch {
		case err != nil:
			r.logger.Printf("Error fetching track fixes for %s: %v", storm.Code, err)
			result.Errors++
		case len(fixes) == 0:
			// nothing to store
		default:
			if err := r.fixes.InsertBulk(ctx, storm.Code, fixes); err != nil {
				if errors.Is(err, storage.ErrDuplicateKey) {
					result.DuplicatesSkipped += len(fixes)
				} else {
					r.logger.Printf("Error storing track fixes for %s: %v", storm.Code, err)
					result.Errors++
				}
			} else {
				result.FixesIngested += len(fixes)
			}
			for _, fix := range fixes {
				if ms := fix.Timestamp.UnixMilli(); ms > lastMs {
					lastMs = ms
				}
			}
		}
	}

	if r.environment != nil {
		samples, err := r.environment.FetchEnvironmentSamples(ctx, storm.Code)
		switch {
		case err != nil:
			r.logger.Printf("Error fetching environment samples for %s: %v", storm.Code, err)
			result.Errors++
		case len(samples) == 0:
			// storms without diagnostics are expected; alignment treats
			// them as all-missing
		default:
			if err := r.samples.InsertBulk(ctx, storm.Code, samples); err != nil {
				if errors.Is(err, storage.ErrDuplicateKey) {
					result.DuplicatesSkipped += len(samples)
				} else {
					r.logger.Printf("Error storing environment samples for %s: %v", storm.Code, err)
					result.Errors++
				}
			} else {
				result.SamplesIngested += len(samples)
			}
		}
	}

	return lastMs
}
