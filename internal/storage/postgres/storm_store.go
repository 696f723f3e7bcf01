package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// StormStore implements storage.StormStore using PostgreSQL.
type StormStore struct {
	pool *Pool
}

// NewStormStore creates a new StormStore.
func NewStormStore(pool *Pool) *StormStore {
	return &StormStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StormStore = (*StormStore)(nil)

// Insert adds a new storm. Returns ErrDuplicateKey if the code exists.
func (s *StormStore) Insert(ctx context.Context, storm *domain.Storm) error {
	query := `
		INSERT INTO storms (
			code, name, year, basin, start_time, end_time
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		storm.Code,
		storm.Name,
		storm.Year,
		string(storm.Basin),
		storm.StartTime,
		storm.EndTime,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert storm: %w", err)
	}
	return nil
}

// GetByCode retrieves a storm by ATCF code. Returns ErrNotFound if not exists.
func (s *StormStore) GetByCode(ctx context.Context, code string) (*domain.Storm, error) {
	query := `
		SELECT code, name, year, basin, start_time, end_time
		FROM storms
		WHERE code = $1
	`

	row := s.pool.QueryRow(ctx, query, code)
	storm, err := scanStorm(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get storm by code: %w", err)
	}
	return storm, nil
}

// ListByBasin retrieves all storms for a basin, ordered by start time ASC.
func (s *StormStore) ListByBasin(ctx context.Context, basin domain.Basin) ([]*domain.Storm, error) {
	query := `
		SELECT code, name, year, basin, start_time, end_time
		FROM storms
		WHERE basin = $1
		ORDER BY start_time ASC, code ASC
	`

	rows, err := s.pool.Query(ctx, query, string(basin))
	if err != nil {
		return nil, fmt.Errorf("list storms by basin: %w", err)
	}
	defer rows.Close()

	return scanStorms(rows)
}

// ListByYearRange retrieves storms whose season year falls within
// [minYear, maxYear], ordered by start time ASC.
func (s *StormStore) ListByYearRange(ctx context.Context, minYear, maxYear int) ([]*domain.Storm, error) {
	query := `
		SELECT code, name, year, basin, start_time, end_time
		FROM storms
		WHERE year >= $1 AND year <= $2
		ORDER BY start_time ASC, code ASC
	`

	rows, err := s.pool.Query(ctx, query, minYear, maxYear)
	if err != nil {
		return nil, fmt.Errorf("list storms by year range: %w", err)
	}
	defer rows.Close()

	return scanStorms(rows)
}

// scanStorm scans a single row into a Storm.
func scanStorm(row pgx.Row) (*domain.Storm, error) {
	var storm domain.Storm
	var basinStr string

	err := row.Scan(
		&storm.Code,
		&storm.Name,
		&storm.Year,
		&basinStr,
		&storm.StartTime,
		&storm.EndTime,
	)
	if err != nil {
		return nil, err
	}

	storm.Basin = domain.Basin(basinStr)
	return &storm, nil
}

// scanStorms scans multiple rows into a slice of Storm.
func scanStorms(rows pgx.Rows) ([]*domain.Storm, error) {
	var storms []*domain.Storm

	for rows.Next() {
		var storm domain.Storm
		var basinStr string

		err := rows.Scan(
			&storm.Code,
			&storm.Name,
			&storm.Year,
			&basinStr,
			&storm.StartTime,
			&storm.EndTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan storm row: %w", err)
		}

		storm.Basin = domain.Basin(basinStr)
		storms = append(storms, &storm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate storm rows: %w", err)
	}

	return storms, nil
}
