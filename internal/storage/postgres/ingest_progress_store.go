package postgres

import (
	"context"
	"fmt"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// IngestProgressStore implements storage.IngestProgressStore using
// PostgreSQL.
type IngestProgressStore struct {
	pool *Pool
}

// NewIngestProgressStore creates a new IngestProgressStore.
func NewIngestProgressStore(pool *Pool) *IngestProgressStore {
	return &IngestProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)

// GetLastIngested returns the last ingested position for a basin.
// Returns ErrNotFound if no progress has been saved yet.
func (s *IngestProgressStore) GetLastIngested(ctx context.Context, basin domain.Basin) (*storage.IngestProgress, error) {
	query := `
		SELECT basin, last_timestamp
		FROM ingest_progress
		WHERE basin = $1
	`

	var progress storage.IngestProgress
	var basinStr string
	err := s.pool.QueryRow(ctx, query, string(basin)).Scan(&basinStr, &progress.LastTimestamp)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get last ingested: %w", err)
	}

	progress.Basin = domain.Basin(basinStr)
	return &progress, nil
}

// SetLastIngested saves the last ingested position for a basin.
func (s *IngestProgressStore) SetLastIngested(ctx context.Context, progress *storage.IngestProgress) error {
	query := `
		INSERT INTO ingest_progress (basin, last_timestamp)
		VALUES ($1, $2)
		ON CONFLICT (basin) DO UPDATE
		SET last_timestamp = EXCLUDED.last_timestamp, updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query, string(progress.Basin), progress.LastTimestamp)
	if err != nil {
		return fmt.Errorf("set last ingested: %w", err)
	}
	return nil
}

// IsStormSeen checks if a storm code has been ingested.
func (s *IngestProgressStore) IsStormSeen(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM seen_storms WHERE code = $1)`

	var seen bool
	if err := s.pool.QueryRow(ctx, query, code).Scan(&seen); err != nil {
		return false, fmt.Errorf("check storm seen: %w", err)
	}
	return seen, nil
}

// MarkStormSeen records that a storm code has been ingested.
func (s *IngestProgressStore) MarkStormSeen(ctx context.Context, code string) error {
	query := `
		INSERT INTO seen_storms (code)
		VALUES ($1)
		ON CONFLICT (code) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, code); err != nil {
		return fmt.Errorf("mark storm seen: %w", err)
	}
	return nil
}

// LoadSeenStorms returns all seen storm codes ordered ASC, for warming the
// in-memory cache.
func (s *IngestProgressStore) LoadSeenStorms(ctx context.Context) ([]string, error) {
	query := `SELECT code FROM seen_storms ORDER BY code ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load seen storms: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan seen storm code: %w", err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen storm rows: %w", err)
	}

	return codes, nil
}
