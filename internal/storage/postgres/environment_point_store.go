package postgres

import (
	"context"
	"fmt"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// EnvironmentPointStore implements storage.EnvironmentPointStore using
// PostgreSQL. Shear columns are nullable; a nil pointer round-trips as
// SQL NULL for bins beyond the join tolerance.
type EnvironmentPointStore struct {
	pool *Pool
}

// NewEnvironmentPointStore creates a new EnvironmentPointStore.
func NewEnvironmentPointStore(pool *Pool) *EnvironmentPointStore {
	return &EnvironmentPointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EnvironmentPointStore = (*EnvironmentPointStore)(nil)

// InsertBulk adds the interpolated points for a storm's run atomically.
// Fails the entire batch on any duplicate (storm_code, bin_midpoint).
func (s *EnvironmentPointStore) InsertBulk(ctx context.Context, stormCode string, points []domain.InterpolatedEnvironmentPoint) error {
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
		INSERT INTO environment_points (
			storm_code, bin_midpoint, shear_magnitude_kt, shear_direction_deg
		) VALUES ($1, $2, $3, $4)
	`

	for _, point := range points {
		_, err := tx.Exec(ctx, query,
			stormCode,
			point.Timestamp,
			point.ShearMagnitudeKt,
			point.ShearDirectionDeg,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert environment point in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByStormCode retrieves all points for a storm, ordered by bin midpoint ASC.
func (s *EnvironmentPointStore) GetByStormCode(ctx context.Context, stormCode string) ([]domain.InterpolatedEnvironmentPoint, error) {
	query := `
		SELECT bin_midpoint, shear_magnitude_kt, shear_direction_deg
		FROM environment_points
		WHERE storm_code = $1
		ORDER BY bin_midpoint ASC
	`

	rows, err := s.pool.Query(ctx, query, stormCode)
	if err != nil {
		return nil, fmt.Errorf("get environment points by storm code: %w", err)
	}
	defer rows.Close()

	var points []domain.InterpolatedEnvironmentPoint
	for rows.Next() {
		var point domain.InterpolatedEnvironmentPoint

		err := rows.Scan(
			&point.Timestamp,
			&point.ShearMagnitudeKt,
			&point.ShearDirectionDeg,
		)
		if err != nil {
			return nil, fmt.Errorf("scan environment point row: %w", err)
		}

		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate environment point rows: %w", err)
	}

	return points, nil
}
