package postgres

import (
	"context"
	"fmt"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// TrackPointStore implements storage.TrackPointStore using PostgreSQL.
type TrackPointStore struct {
	pool *Pool
}

// NewTrackPointStore creates a new TrackPointStore.
func NewTrackPointStore(pool *Pool) *TrackPointStore {
	return &TrackPointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrackPointStore = (*TrackPointStore)(nil)

// InsertBulk adds the interpolated points for a storm's run atomically.
// Fails the entire batch on any duplicate (storm_code, bin_midpoint).
func (s *TrackPointStore) InsertBulk(ctx context.Context, stormCode string, points []domain.InterpolatedTrackPoint) error {
	if stormCode == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO track_points (
			storm_code, bin_midpoint, lat, lon, motion_direction_deg,
			status, max_wind_kt, min_pressure_mb, radius_max_wind_nmi
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for _, point := range points {
		_, err := tx.Exec(ctx, query,
			stormCode,
			point.Timestamp,
			point.Lat,
			point.Lon,
			point.MotionDirectionDeg,
			point.Status,
			point.MaxWindKt,
			point.MinPressureMb,
			point.RadiusMaxWindNmi,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert track point in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByStormCode retrieves all points for a storm, ordered by bin midpoint ASC.
func (s *TrackPointStore) GetByStormCode(ctx context.Context, stormCode string) ([]domain.InterpolatedTrackPoint, error) {
	query := `
		SELECT bin_midpoint, lat, lon, motion_direction_deg,
		       status, max_wind_kt, min_pressure_mb, radius_max_wind_nmi
		FROM track_points
		WHERE storm_code = $1
		ORDER BY bin_midpoint ASC
	`

	rows, err := s.pool.Query(ctx, query, stormCode)
	if err != nil {
		return nil, fmt.Errorf("get track points by storm code: %w", err)
	}
	defer rows.Close()

	var points []domain.InterpolatedTrackPoint
	for rows.Next() {
		var point domain.InterpolatedTrackPoint

		err := rows.Scan(
			&point.Timestamp,
			&point.Lat,
			&point.Lon,
			&point.MotionDirectionDeg,
			&point.Status,
			&point.MaxWindKt,
			&point.MinPressureMb,
			&point.RadiusMaxWindNmi,
		)
		if err != nil {
			return nil, fmt.Errorf("scan track point row: %w", err)
		}

		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate track point rows: %w", err)
	}

	return points, nil
}
