package postgres

import (
	"context"
	"fmt"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// EnvironmentSampleStore implements storage.EnvironmentSampleStore using
// PostgreSQL.
type EnvironmentSampleStore struct {
	pool *Pool
}

// NewEnvironmentSampleStore creates a new EnvironmentSampleStore.
func NewEnvironmentSampleStore(pool *Pool) *EnvironmentSampleStore {
	return &EnvironmentSampleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EnvironmentSampleStore = (*EnvironmentSampleStore)(nil)

// InsertBulk adds multiple samples for a storm atomically. Fails the entire
// batch on any duplicate (storm_code, timestamp).
func (s *EnvironmentSampleStore) InsertBulk(ctx context.Context, stormCode string, samples []domain.EnvironmentSample) error {
	if stormCode == "" {
		return storage.ErrInvalidInput
	}
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO environment_samples (
			storm_code, timestamp, shear_magnitude_kt, shear_direction_deg
		) VALUES ($1, $2, $3, $4)
	`

	for _, sample := range samples {
		_, err := tx.Exec(ctx, query,
			stormCode,
			sample.Timestamp,
			sample.ShearMagnitudeKt,
			sample.ShearDirectionDeg,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert environment sample in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByStormCode retrieves all samples for a storm, ordered by timestamp ASC.
func (s *EnvironmentSampleStore) GetByStormCode(ctx context.Context, stormCode string) ([]domain.EnvironmentSample, error) {
	query := `
		SELECT timestamp, shear_magnitude_kt, shear_direction_deg
		FROM environment_samples
		WHERE storm_code = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, stormCode)
	if err != nil {
		return nil, fmt.Errorf("get environment samples by storm code: %w", err)
	}
	defer rows.Close()

	var samples []domain.EnvironmentSample
	for rows.Next() {
		var sample domain.EnvironmentSample

		err := rows.Scan(
			&sample.Timestamp,
			&sample.ShearMagnitudeKt,
			&sample.ShearDirectionDeg,
		)
		if err != nil {
			return nil, fmt.Errorf("scan environment sample row: %w", err)
		}

		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate environment sample rows: %w", err)
	}

	return samples, nil
}
