// Package orchestrator drives batch alignment runs across the storm
// population, one storm at a time through the pipeline stage machine.
package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/ingestion"
	"storm-align-lab/internal/observability"
	"storm-align-lab/internal/pipeline"
	"storm-align-lab/internal/storage"
)

// Options contains configuration for creating an Orchestrator.
type Options struct {
	Storms  storage.StormStore    // required population index
	Runner  *pipeline.StormRunner // required per-storm stage sequence
	Results storage.ResultStore   // optional per-run audit trail
	Cache   *ingestion.BatchCache // optional; cleared between storms when set
	Basin   domain.Basin          // population filter; optional when a season range is set
	MinYear int                   // season range filter, inclusive; optional when a basin is set
	MaxYear int
	Clock   clockwork.Clock // default real clock
	Logger  *log.Logger
}

// Orchestrator runs the alignment stage sequence over a storm population.
// Storms run sequentially; parallelism lives inside the spatial stage, where
// the many small batch fetches are.
type Orchestrator struct {
	storms  storage.StormStore
	runner  *pipeline.StormRunner
	results storage.ResultStore
	cache   *ingestion.BatchCache
	basin   domain.Basin
	minYear int
	maxYear int
	clock   clockwork.Clock
	logger  *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Storms == nil {
		return nil, fmt.Errorf("%w: storm store is required", domain.ErrInvalidInput)
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("%w: storm runner is required", domain.ErrInvalidInput)
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		storms:  opts.Storms,
		runner:  opts.Runner,
		results: opts.Results,
		cache:   opts.Cache,
		basin:   opts.Basin,
		minYear: opts.MinYear,
		maxYear: opts.MaxYear,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Run aligns every storm in the selected population and returns one result
// per storm. A storm's failure is recorded in its entry and never stops its
// siblings; only context cancellation ends the run early, and even then the
// unreached storms are filled in as failed so no storm goes missing from the
// batch result.
func (o *Orchestrator) Run(ctx context.Context) (*domain.BatchResult, error) {
	batch := &domain.BatchResult{
		RunID:     uuid.NewString(),
		Results:   make(map[string]*domain.StormResult),
		StartedAt: o.clock.Now().UTC(),
	}

	storms, err := o.loadPopulation(ctx)
	if err != nil {
		return nil, fmt.Errorf("load storm population: %w", err)
	}
	o.logger.Printf("Run %s: aligning %d storms", batch.RunID, len(storms))

	for i, storm := range storms {
		if err := ctx.Err(); err != nil {
			o.cancelRemaining(batch, storms[i:], err)
			batch.FinishedAt = o.clock.Now().UTC()
			return batch, err
		}

		// Batch ids are only meaningful within one storm's time window; a
		// stale entry left over from the previous storm would alias a
		// different range of observations.
		if o.cache != nil {
			o.cache.Clear()
		}

		result := o.runner.Run(ctx, storm)
		result.RunID = batch.RunID
		batch.Results[storm.Code] = result
		observability.RecordStormProcessed(result.Status.String())

		if result.Status == domain.StatusComplete {
			o.logger.Printf("Run %s: storm %s (%s) complete in %s",
				batch.RunID, storm.Code, storm.Name, result.FinishedAt.Sub(result.StartedAt))
		}

		if o.results != nil {
			if err := o.results.Insert(ctx, result); err != nil {
				o.logger.Printf("Run %s: warning: failed to record result for %s: %v", batch.RunID, storm.Code, err)
			}
		}
	}

	batch.FinishedAt = o.clock.Now().UTC()
	observability.RecordSuccessfulRun(batch.FinishedAt)
	o.logger.Printf("Run %s: complete: %d/%d storms aligned in %s",
		batch.RunID, batch.Completed(), len(storms), batch.FinishedAt.Sub(batch.StartedAt))
	return batch, nil
}

// loadPopulation resolves the storms this run covers. Selection needs at
// least one of a basin or a season range; season selections are narrowed by
// basin when both are set.
func (o *Orchestrator) loadPopulation(ctx context.Context) ([]*domain.Storm, error) {
	switch {
	case o.minYear > 0 && o.maxYear > 0:
		storms, err := o.storms.ListByYearRange(ctx, o.minYear, o.maxYear)
		if err != nil {
			return nil, err
		}
		if !o.basin.IsValid() {
			return storms, nil
		}
		var filtered []*domain.Storm
		for _, s := range storms {
			if s.Basin == o.basin {
				filtered = append(filtered, s)
			}
		}
		return filtered, nil
	case o.basin.IsValid():
		return o.storms.ListByBasin(ctx, o.basin)
	default:
		return nil, fmt.Errorf("%w: population selection requires a basin or a season range", domain.ErrInvalidInput)
	}
}

// cancelRemaining marks the storms a canceled run never reached, so the
// batch result still carries one entry per storm in the population.
func (o *Orchestrator) cancelRemaining(batch *domain.BatchResult, remaining []*domain.Storm, cause error) {
	now := o.clock.Now().UTC()
	for _, storm := range remaining {
		batch.Results[storm.Code] = &domain.StormResult{
			RunID:      batch.RunID,
			StormCode:  storm.Code,
			StormName:  storm.Name,
			Status:     domain.StatusFailed,
			Error:      fmt.Sprintf("run canceled: %v", cause),
			StartedAt:  now,
			FinishedAt: now,
		}
	}
	o.logger.Printf("Run %s: canceled with %d storms unprocessed: %v", batch.RunID, len(remaining), cause)
}
