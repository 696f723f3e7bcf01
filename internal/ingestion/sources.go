package ingestion

import (
	"context"
	"time"

	"storm-align-lab/internal/domain"
)

// TimeWindow is a half-open interval [Start, End) used to scope source reads.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// TrackSource provides best-track fixes for one storm from an external
// archive. Fixes may be unordered; the interpolator sorts internally.
type TrackSource interface {
	FetchTrackFixes(ctx context.Context, stormCode string) ([]domain.TrackFix, error)
}

// EnvironmentSource provides environmental diagnostic samples for one storm.
type EnvironmentSource interface {
	FetchEnvironmentSamples(ctx context.Context, stormCode string) ([]domain.EnvironmentSample, error)
}

// BatchHandle identifies one coarse time-keyed observation batch. Handles are
// only meaningful for the time window they were listed under; their ids are
// not globally unique across storms' overlapping windows.
type BatchHandle struct {
	ID        string    // deterministic batch identifier
	URL       string    // source object location
	StartTime time.Time // batch coverage start, parsed from the object name
}

// ObservationSource lists and reads observation batches from a high-volume
// external source. Batches are keyed by coarse time windows, not storm bins;
// callers filter per bin.
type ObservationSource interface {
	// ListBatches enumerates batches whose coverage starts inside the window.
	ListBatches(ctx context.Context, window TimeWindow) ([]BatchHandle, error)
	// ReadBatch fetches and decodes one batch.
	ReadBatch(ctx context.Context, handle BatchHandle) ([]domain.Observation, error)
}
