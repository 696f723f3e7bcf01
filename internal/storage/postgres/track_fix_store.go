package postgres

import (
	"context"
	"fmt"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// TrackFixStore implements storage.TrackFixStore using PostgreSQL.
type TrackFixStore struct {
	pool *Pool
}

// NewTrackFixStore creates a new TrackFixStore.
func NewTrackFixStore(pool *Pool) *TrackFixStore {
	return &TrackFixStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrackFixStore = (*TrackFixStore)(nil)

// InsertBulk adds multiple fixes for a storm atomically. Fails the entire
// batch on any duplicate (storm_code, timestamp).
func (s *TrackFixStore) InsertBulk(ctx context.Context, stormCode string, fixes []domain.TrackFix) error {
	if stormCode == "" {
		return storage.ErrInvalidInput
	}
	if len(fixes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO track_fixes (
			storm_code, timestamp, lat, lon, status,
			max_wind_kt, min_pressure_mb, radius_max_wind_nmi
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, fix := range fixes {
		_, err := tx.Exec(ctx, query,
			stormCode,
			fix.Timestamp,
			fix.Lat,
			fix.Lon,
			fix.Status,
			fix.MaxWindKt,
			fix.MinPressureMb,
			fix.RadiusMaxWindNmi,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert track fix in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByStormCode retrieves all fixes for a storm, ordered by timestamp ASC.
func (s *TrackFixStore) GetByStormCode(ctx context.Context, stormCode string) ([]domain.TrackFix, error) {
	query := `
		SELECT timestamp, lat, lon, status,
		       max_wind_kt, min_pressure_mb, radius_max_wind_nmi
		FROM track_fixes
		WHERE storm_code = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, stormCode)
	if err != nil {
		return nil, fmt.Errorf("get track fixes by storm code: %w", err)
	}
	defer rows.Close()

	var fixes []domain.TrackFix
	for rows.Next() {
		var fix domain.TrackFix

		err := rows.Scan(
			&fix.Timestamp,
			&fix.Lat,
			&fix.Lon,
			&fix.Status,
			&fix.MaxWindKt,
			&fix.MinPressureMb,
			&fix.RadiusMaxWindNmi,
		)
		if err != nil {
			return nil, fmt.Errorf("scan track fix row: %w", err)
		}

		fixes = append(fixes, fix)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track fix rows: %w", err)
	}

	return fixes, nil
}
