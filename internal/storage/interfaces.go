package storage

import (
	"context"
	"time"

	"storm-align-lab/internal/domain"
)

// StormStore provides access to the storms population index.
type StormStore interface {
	// Insert adds a new storm. Returns ErrDuplicateKey if the code exists.
	Insert(ctx context.Context, s *domain.Storm) error

	// GetByCode retrieves a storm by ATCF code. Returns ErrNotFound if not exists.
	GetByCode(ctx context.Context, code string) (*domain.Storm, error)

	// ListByBasin retrieves all storms for a basin, ordered by start time ASC.
	ListByBasin(ctx context.Context, basin domain.Basin) ([]*domain.Storm, error)

	// ListByYearRange retrieves storms whose start year falls within
	// [minYear, maxYear], ordered by start time ASC.
	ListByYearRange(ctx context.Context, minYear, maxYear int) ([]*domain.Storm, error)
}

// TrackFixStore provides access to raw best-track fixes.
type TrackFixStore interface {
	// InsertBulk adds multiple fixes for a storm. Fails entire batch on any
	// duplicate (storm_code, timestamp).
	InsertBulk(ctx context.Context, stormCode string, fixes []domain.TrackFix) error

	// GetByStormCode retrieves all fixes for a storm, ordered by timestamp ASC.
	GetByStormCode(ctx context.Context, stormCode string) ([]domain.TrackFix, error)
}

// EnvironmentSampleStore provides access to raw environment samples.
type EnvironmentSampleStore interface {
	// InsertBulk adds multiple samples for a storm. Fails entire batch on any
	// duplicate (storm_code, timestamp).
	InsertBulk(ctx context.Context, stormCode string, samples []domain.EnvironmentSample) error

	// GetByStormCode retrieves all samples for a storm, ordered by timestamp ASC.
	GetByStormCode(ctx context.Context, stormCode string) ([]domain.EnvironmentSample, error)
}

// TrackPointStore provides access to interpolated track_points storage.
type TrackPointStore interface {
	// InsertBulk adds the interpolated points for a storm's run. Fails entire
	// batch on any duplicate (storm_code, timestamp).
	InsertBulk(ctx context.Context, stormCode string, points []domain.InterpolatedTrackPoint) error

	// GetByStormCode retrieves all points for a storm, ordered by timestamp ASC.
	GetByStormCode(ctx context.Context, stormCode string) ([]domain.InterpolatedTrackPoint, error)
}

// EnvironmentPointStore provides access to interpolated environment_points storage.
type EnvironmentPointStore interface {
	// InsertBulk adds the interpolated points for a storm's run. Fails entire
	// batch on any duplicate (storm_code, timestamp).
	InsertBulk(ctx context.Context, stormCode string, points []domain.InterpolatedEnvironmentPoint) error

	// GetByStormCode retrieves all points for a storm, ordered by timestamp ASC.
	GetByStormCode(ctx context.Context, stormCode string) ([]domain.InterpolatedEnvironmentPoint, error)
}

// ObservationStore provides access to aggregated bin_observations storage.
type ObservationStore interface {
	// InsertBulk adds multiple observation rows.
	InsertBulk(ctx context.Context, rows []*domain.ObservationRow) error

	// GetByStormCode retrieves all rows for a storm, ordered by bin midpoint
	// then timestamp ASC.
	GetByStormCode(ctx context.Context, stormCode string) ([]*domain.ObservationRow, error)

	// GetByBin retrieves rows for one storm bin, ordered by timestamp ASC.
	GetByBin(ctx context.Context, stormCode string, binMidpoint time.Time) ([]*domain.ObservationRow, error)
}

// ResultStore provides access to pipeline storm_results storage.
type ResultStore interface {
	// Insert adds a storm's run result. Returns ErrDuplicateKey if
	// (run_id, storm_code) exists.
	Insert(ctx context.Context, r *domain.StormResult) error

	// GetByRunID retrieves all results for a run, ordered by storm code ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.StormResult, error)

	// GetByStormCode retrieves all results recorded for a storm across runs,
	// ordered by started_at ASC.
	GetByStormCode(ctx context.Context, stormCode string) ([]*domain.StormResult, error)
}
