package storage

import (
	"context"

	"storm-align-lab/internal/domain"
)

// IngestProgress represents the last ingested position in a basin's dataset.
type IngestProgress struct {
	Basin         domain.Basin // basin the progress applies to
	LastTimestamp int64        // unix ms of the newest ingested fix
}

// IngestProgressStore provides persistence for ingestion state.
// This enables resumption after restarts without re-inserting storms
// that are already in the population index.
type IngestProgressStore interface {
	// GetLastIngested returns the last ingested position for a basin.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastIngested(ctx context.Context, basin domain.Basin) (*IngestProgress, error)

	// SetLastIngested saves the last ingested position for a basin.
	SetLastIngested(ctx context.Context, progress *IngestProgress) error

	// IsStormSeen checks if a storm code has been ingested.
	IsStormSeen(ctx context.Context, code string) (bool, error)

	// MarkStormSeen records that a storm code has been ingested.
	MarkStormSeen(ctx context.Context, code string) error

	// LoadSeenStorms returns all seen storm codes (for warming the in-memory cache).
	LoadSeenStorms(ctx context.Context) ([]string, error)
}
