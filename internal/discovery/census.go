package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/observability"
	"storm-align-lab/internal/storage"
)

// Census years default to the window the observation archive covers.
const (
	DefaultMinYear = 2021
	DefaultMaxYear = 2023
)

// TrackDatasetSource supplies a basin's complete parsed best-track dataset.
type TrackDatasetSource interface {
	StormTracks(ctx context.Context, basin domain.Basin) ([]*StormTrack, error)
}

// Census scans best-track datasets and builds the storm population index:
// every storm in the year window that reached hurricane status at any fix.
type Census struct {
	source    TrackDatasetSource
	storms    storage.StormStore
	progress  storage.IngestProgressStore // optional persistence
	minYear   int
	maxYear   int
	logger    *log.Logger
	seenCodes map[string]bool
}

// CensusOptions contains configuration for creating a Census.
type CensusOptions struct {
	Source  TrackDatasetSource
	Storms  storage.StormStore
	MinYear int // defaults to DefaultMinYear
	MaxYear int // defaults to DefaultMaxYear
	Logger  *log.Logger
}

// NewCensus creates a new storm census.
func NewCensus(opts CensusOptions) (*Census, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: track dataset source is required", domain.ErrInvalidInput)
	}
	if opts.Storms == nil {
		return nil, fmt.Errorf("%w: storm store is required", domain.ErrInvalidInput)
	}

	minYear := opts.MinYear
	if minYear == 0 {
		minYear = DefaultMinYear
	}
	maxYear := opts.MaxYear
	if maxYear == 0 {
		maxYear = DefaultMaxYear
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Census{
		source:    opts.Source,
		storms:    opts.Storms,
		minYear:   minYear,
		maxYear:   maxYear,
		logger:    logger,
		seenCodes: make(map[string]bool),
	}, nil
}

// WithProgressStore enables persistence of ingestion state.
// Without it the census falls back to in-memory tracking only.
func (c *Census) WithProgressStore(store storage.IngestProgressStore) *Census {
	c.progress = store
	return c
}

// LoadState warms the in-memory seen cache from the progress store.
// Call once on startup, before Run.
func (c *Census) LoadState(ctx context.Context) error {
	if c.progress == nil {
		return nil
	}

	codes, err := c.progress.LoadSeenStorms(ctx)
	if err != nil {
		return fmt.Errorf("load seen storms: %w", err)
	}
	for _, code := range codes {
		c.seenCodes[code] = true
	}

	if len(codes) > 0 {
		c.logger.Printf("Loaded %d seen storms from persistence", len(codes))
	}
	return nil
}

// SaveProgress records the last ingested position for a basin.
// No-op without a progress store.
func (c *Census) SaveProgress(ctx context.Context, basin domain.Basin, lastTimestamp int64) error {
	if c.progress == nil {
		return nil
	}
	return c.progress.SetLastIngested(ctx, &storage.IngestProgress{
		Basin:         basin,
		LastTimestamp: lastTimestamp,
	})
}

// GetProgress returns the last ingested position for a basin, or nil
// without a progress store or saved state.
func (c *Census) GetProgress(ctx context.Context, basin domain.Basin) (*storage.IngestProgress, error) {
	if c.progress == nil {
		return nil, nil
	}
	progress, err := c.progress.GetLastIngested(ctx, basin)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return progress, err
}

// Run scans one basin's dataset and inserts every qualifying storm into the
// population index. Returns the storms inserted by this call; storms already
// present are skipped without error.
func (c *Census) Run(ctx context.Context, basin domain.Basin) ([]*domain.Storm, error) {
	tracks, err := c.source.StormTracks(ctx, basin)
	if err != nil {
		return nil, fmt.Errorf("storm tracks for basin %s: %w", basin, err)
	}

	var discovered []*domain.Storm
	for _, track := range tracks {
		storm, ok := track.Storm()
		if !ok || storm.Basin != basin {
			continue
		}
		if storm.Year < c.minYear || storm.Year > c.maxYear {
			continue
		}
		if !track.ReachedStatus(domain.StatusHurricane) {
			continue
		}
		if c.seenCodes[storm.Code] {
			continue
		}

		s := storm
		if err := c.storms.Insert(ctx, &s); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				c.markSeen(ctx, storm.Code)
				continue
			}
			return discovered, fmt.Errorf("insert storm %s: %w", storm.Code, err)
		}

		c.markSeen(ctx, storm.Code)
		observability.RecordStormDiscovered()
		c.logger.Printf("Storm discovered: %s (%s %d)", storm.Code, storm.Name, storm.Year)
		discovered = append(discovered, &s)
	}

	return discovered, nil
}

// markSeen records a code in the cache and, when configured, the progress
// store. A persistence failure downgrades to a log line; the in-memory
// cache still protects this process from re-inserting.
func (c *Census) markSeen(ctx context.Context, code string) {
	c.seenCodes[code] = true
	if c.progress == nil {
		return
	}
	if err := c.progress.MarkStormSeen(ctx, code); err != nil {
		c.logger.Printf("Failed to persist seen storm %s: %v", code, err)
	}
}

// Reset clears the in-memory seen codes cache.
// Useful when re-running a census against a fresh population index.
func (c *Census) Reset() {
	c.seenCodes = make(map[string]bool)
}
