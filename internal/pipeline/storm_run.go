// Package pipeline runs the per-storm alignment stage sequence: track
// interpolation, environment alignment, spatial aggregation, persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/ingestion"
	"storm-align-lab/internal/interpolation"
	"storm-align-lab/internal/observability"
	"storm-align-lab/internal/spatial"
	"storm-align-lab/internal/storage"
	"storm-align-lab/internal/timegrid"
)

// Default alignment parameters: bin width and the environment join tolerance.
const (
	DefaultInterval  = 30 * time.Minute
	DefaultTolerance = 3 * time.Hour
)

// ArtifactWriter persists one storm's aligned outputs as files and returns
// the storm's artifact directory key.
type ArtifactWriter interface {
	WriteStormArtifacts(ctx context.Context, storm *domain.Storm, track []domain.InterpolatedTrackPoint, environment []domain.InterpolatedEnvironmentPoint, aggregates []domain.BinAggregate) (string, error)
}

// StormRunnerOptions contains configuration for creating a StormRunner.
type StormRunnerOptions struct {
	Tracks       ingestion.TrackSource         // required
	Environment  ingestion.EnvironmentSource   // required
	Aggregator   *spatial.Aggregator           // optional; nil disables the spatial stage
	TrackPoints  storage.TrackPointStore       // required
	EnvPoints    storage.EnvironmentPointStore // required
	Observations storage.ObservationStore      // required when Aggregator is set
	Artifacts    ArtifactWriter                // optional per-storm file output
	Interval     time.Duration                 // bin width, default 30m
	Tolerance    time.Duration                 // environment join tolerance, default 3h
	Clock        clockwork.Clock               // default real clock
	Logger       *log.Logger
}

// StormRunner executes the alignment stage sequence for one storm at a time.
// Failures are absorbed into the returned result rather than propagated, so
// one storm's failure never aborts its siblings in a batch run.
type StormRunner struct {
	tracks       ingestion.TrackSource
	environment  ingestion.EnvironmentSource
	aggregator   *spatial.Aggregator
	trackPoints  storage.TrackPointStore
	envPoints    storage.EnvironmentPointStore
	observations storage.ObservationStore
	artifacts    ArtifactWriter
	interval     time.Duration
	tolerance    time.Duration
	clock        clockwork.Clock
	logger       *log.Logger
}

// NewStormRunner creates a new storm runner.
func NewStormRunner(opts StormRunnerOptions) (*StormRunner, error) {
	if opts.Tracks == nil {
		return nil, fmt.Errorf("%w: track source is required", domain.ErrInvalidInput)
	}
	if opts.Environment == nil {
		return nil, fmt.Errorf("%w: environment source is required", domain.ErrInvalidInput)
	}
	if opts.TrackPoints == nil {
		return nil, fmt.Errorf("%w: track point store is required", domain.ErrInvalidInput)
	}
	if opts.EnvPoints == nil {
		return nil, fmt.Errorf("%w: environment point store is required", domain.ErrInvalidInput)
	}
	if opts.Aggregator != nil && opts.Observations == nil {
		return nil, fmt.Errorf("%w: observation store is required when spatial aggregation is enabled", domain.ErrInvalidInput)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	tolerance := opts.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &StormRunner{
		tracks:       opts.Tracks,
		environment:  opts.Environment,
		aggregator:   opts.Aggregator,
		trackPoints:  opts.TrackPoints,
		envPoints:    opts.EnvPoints,
		observations: opts.Observations,
		artifacts:    opts.Artifacts,
		interval:     interval,
		tolerance:    tolerance,
		clock:        clock,
		logger:       logger,
	}, nil
}

// Run executes the stage sequence for one storm and returns its result. The
// status machine is linear: PENDING -> TRACK_DONE -> ENV_DONE -> SPATIAL_DONE
// -> COMPLETE, with FAILED absorbing from whichever stage broke first. When
// the spatial stage is disabled the machine steps from ENV_DONE straight to
// persistence.
func (r *StormRunner) Run(ctx context.Context, storm *domain.Storm) *domain.StormResult {
	result := &domain.StormResult{
		StormCode: storm.Code,
		StormName: storm.Name,
		Status:    domain.StatusPending,
		StartedAt: r.clock.Now().UTC(),
	}
	defer func() { result.FinishedAt = r.clock.Now().UTC() }()

	track, bins, err := r.runTrackStage(ctx, storm, result)
	if err != nil {
		r.fail(result, domain.StageTrack, err)
		return result
	}
	result.Status = domain.StatusTrackDone

	environment, err := r.runEnvironmentStage(ctx, storm, bins, result)
	if err != nil {
		r.fail(result, domain.StageEnvironment, err)
		return result
	}
	result.Status = domain.StatusEnvDone

	var aggregates []domain.BinAggregate
	if r.aggregator != nil {
		aggregates, err = r.runSpatialStage(ctx, storm, bins, track, result)
		if err != nil {
			r.fail(result, domain.StageSpatial, err)
			return result
		}
		result.Status = domain.StatusSpatialDone
	}

	if err := r.runPersistStage(ctx, storm, track, environment, aggregates, result); err != nil {
		r.fail(result, domain.StagePersist, err)
		return result
	}
	result.Status = domain.StatusComplete
	return result
}

// runTrackStage fetches the storm's best-track fixes, checks pre-flight
// sufficiency, builds the bin grid over the fixes' own time window, and
// interpolates one track point per bin.
func (r *StormRunner) runTrackStage(ctx context.Context, storm *domain.Storm, result *domain.StormResult) ([]domain.InterpolatedTrackPoint, []domain.TimeBin, error) {
	started := r.clock.Now()

	fixes, err := r.tracks.FetchTrackFixes(ctx, storm.Code)
	if err != nil {
		err = fmt.Errorf("fetch track fixes: %w", err)
		r.recordStage(result, domain.StageTrack, started, 0, err)
		return nil, nil, err
	}

	if suff := CheckSufficiency(fixes, r.interval, r.aggregator != nil); !suff.AllPass {
		err = fmt.Errorf("%w: insufficient track data: %s", domain.ErrInvalidInput, strings.Join(suff.Failures(), "; "))
		r.recordStage(result, domain.StageTrack, started, 0, err)
		return nil, nil, err
	}

	first, last := trackWindow(fixes)
	bins, err := timegrid.MakeBins(first, last, r.interval)
	if err != nil {
		err = fmt.Errorf("build bin grid: %w", err)
		r.recordStage(result, domain.StageTrack, started, 0, err)
		return nil, nil, err
	}

	track, err := interpolation.Track(fixes, bins)
	if err != nil {
		err = fmt.Errorf("interpolate track: %w", err)
		r.recordStage(result, domain.StageTrack, started, 0, err)
		return nil, nil, err
	}

	r.recordStage(result, domain.StageTrack, started, len(track), nil)
	return track, bins, nil
}

// runEnvironmentStage fetches diagnostic samples and aligns them onto the
// grid. Storms with no samples still yield one all-missing point per bin;
// that is expected data, not a failure.
func (r *StormRunner) runEnvironmentStage(ctx context.Context, storm *domain.Storm, bins []domain.TimeBin, result *domain.StormResult) ([]domain.InterpolatedEnvironmentPoint, error) {
	started := r.clock.Now()

	samples, err := r.environment.FetchEnvironmentSamples(ctx, storm.Code)
	if err != nil {
		err = fmt.Errorf("fetch environment samples: %w", err)
		r.recordStage(result, domain.StageEnvironment, started, 0, err)
		return nil, err
	}

	environment, err := interpolation.Environment(samples, bins, r.tolerance)
	if err != nil {
		err = fmt.Errorf("align environment samples: %w", err)
		r.recordStage(result, domain.StageEnvironment, started, 0, err)
		return nil, err
	}

	r.recordStage(result, domain.StageEnvironment, started, len(environment), nil)
	return environment, nil
}

// runSpatialStage aggregates observations around the interpolated centers.
// The stage's row count is the number of observations kept inside the radius
// cutoff across all bins, not the bin count.
func (r *StormRunner) runSpatialStage(ctx context.Context, storm *domain.Storm, bins []domain.TimeBin, track []domain.InterpolatedTrackPoint, result *domain.StormResult) ([]domain.BinAggregate, error) {
	started := r.clock.Now()

	aggregates, err := r.aggregator.Aggregate(ctx, storm.Code, bins, track)
	if err != nil {
		err = fmt.Errorf("aggregate observations: %w", err)
		r.recordStage(result, domain.StageSpatial, started, 0, err)
		return nil, err
	}

	kept := 0
	for _, a := range aggregates {
		kept += len(a.Observations)
	}
	r.recordStage(result, domain.StageSpatial, started, kept, nil)
	return aggregates, nil
}

// runPersistStage writes the aligned series and aggregated observations to
// their stores, then the per-storm artifact files. Re-running a storm finds
// its points already present; those duplicates are skipped rather than
// failed, so a rerun converges instead of erroring out.
func (r *StormRunner) runPersistStage(ctx context.Context, storm *domain.Storm, track []domain.InterpolatedTrackPoint, environment []domain.InterpolatedEnvironmentPoint, aggregates []domain.BinAggregate, result *domain.StormResult) error {
	started := r.clock.Now()
	rows := 0

	if err := r.trackPoints.InsertBulk(ctx, storm.Code, track); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			err = fmt.Errorf("persist track points: %w", err)
			r.recordStage(result, domain.StagePersist, started, rows, err)
			return err
		}
		r.logger.Printf("storm %s: track points already persisted, skipping", storm.Code)
	} else {
		rows += len(track)
	}

	if err := r.envPoints.InsertBulk(ctx, storm.Code, environment); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			err = fmt.Errorf("persist environment points: %w", err)
			r.recordStage(result, domain.StagePersist, started, rows, err)
			return err
		}
		r.logger.Printf("storm %s: environment points already persisted, skipping", storm.Code)
	} else {
		rows += len(environment)
	}

	if r.observations != nil {
		var obsRows []*domain.ObservationRow
		for _, a := range aggregates {
			obsRows = append(obsRows, a.Rows()...)
		}
		// The observation store dedups by id, so reruns overwrite in place.
		if len(obsRows) > 0 {
			if err := r.observations.InsertBulk(ctx, obsRows); err != nil {
				err = fmt.Errorf("persist observations: %w", err)
				r.recordStage(result, domain.StagePersist, started, rows, err)
				return err
			}
			rows += len(obsRows)
		}
	}

	if r.artifacts != nil {
		dir, err := r.artifacts.WriteStormArtifacts(ctx, storm, track, environment, aggregates)
		if err != nil {
			err = fmt.Errorf("write artifacts: %w", err)
			r.recordStage(result, domain.StagePersist, started, rows, err)
			return err
		}
		result.ArtifactDir = dir
	}

	r.recordStage(result, domain.StagePersist, started, rows, nil)
	return nil
}

// recordStage appends the stage outcome to the result and feeds the stage
// metrics.
func (r *StormRunner) recordStage(result *domain.StormResult, stage domain.Stage, started time.Time, rows int, err error) {
	elapsed := r.clock.Since(started)
	outcome := domain.StageOutcome{Stage: stage, OK: err == nil, Rows: rows}
	status := "ok"
	if err != nil {
		outcome.Error = err.Error()
		status = "error"
	}
	result.Stages = append(result.Stages, outcome)
	observability.RecordStageRun(stage.String(), status, elapsed.Seconds())
}

// fail marks the result terminally failed at the given stage.
func (r *StormRunner) fail(result *domain.StormResult, stage domain.Stage, err error) {
	result.Status = domain.StatusFailed
	result.FailedStage = stage
	result.Error = err.Error()
	r.logger.Printf("storm %s: %s stage failed: %v", result.StormCode, stage, err)
}
