package clickhouse

import (
	"context"
	"fmt"
	"time"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
//
// The bin_observations table is a ReplacingMergeTree keyed on
// (storm_code, bin_midpoint, id), so re-inserting a row supersedes the
// previous version instead of erroring. Retried storm runs overwrite.
// Reads use FINAL to collapse unmerged versions.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBulk adds aggregated observation rows in one native batch.
func (s *ObservationStore) InsertBulk(ctx context.Context, rows []*domain.ObservationRow) error {
	for _, row := range rows {
		if row == nil || row.StormCode == "" || row.ID == "" {
			return storage.ErrInvalidInput
		}
	}
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bin_observations (
			storm_code, bin_midpoint, id, timestamp, lat, lon,
			area_m2, energy_j, quality_flag, distance_m, bearing_deg
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, row := range rows {
		err = batch.Append(
			row.StormCode, row.BinMidpoint, row.ID, row.Timestamp,
			row.Lat, row.Lon, row.AreaM2, row.EnergyJ,
			int32(row.QualityFlag), row.DistanceM, row.BearingDeg,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByStormCode retrieves all observation rows for a storm, ordered by
// bin midpoint then observation timestamp ASC.
func (s *ObservationStore) GetByStormCode(ctx context.Context, stormCode string) ([]*domain.ObservationRow, error) {
	query := `
		SELECT storm_code, bin_midpoint, id, timestamp, lat, lon,
		       area_m2, energy_j, quality_flag, distance_m, bearing_deg
		FROM bin_observations FINAL
		WHERE storm_code = ?
		ORDER BY bin_midpoint ASC, timestamp ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, stormCode)
	if err != nil {
		return nil, fmt.Errorf("query by storm code: %w", err)
	}
	defer rows.Close()

	return scanObservationRows(rows)
}

// GetByBin retrieves rows for one storm bin, ordered by timestamp ASC.
func (s *ObservationStore) GetByBin(ctx context.Context, stormCode string, binMidpoint time.Time) ([]*domain.ObservationRow, error) {
	query := `
		SELECT storm_code, bin_midpoint, id, timestamp, lat, lon,
		       area_m2, energy_j, quality_flag, distance_m, bearing_deg
		FROM bin_observations FINAL
		WHERE storm_code = ? AND bin_midpoint = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := s.conn.Query(ctx, query, stormCode, binMidpoint)
	if err != nil {
		return nil, fmt.Errorf("query by bin: %w", err)
	}
	defer rows.Close()

	return scanObservationRows(rows)
}

// chRows abstracts driver.Rows for scan helpers.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanObservationRows scans multiple rows.
func scanObservationRows(rows chRows) ([]*domain.ObservationRow, error) {
	var result []*domain.ObservationRow

	for rows.Next() {
		var row domain.ObservationRow
		var qualityFlag int32

		err := rows.Scan(
			&row.StormCode, &row.BinMidpoint, &row.ID, &row.Timestamp,
			&row.Lat, &row.Lon, &row.AreaM2, &row.EnergyJ,
			&qualityFlag, &row.DistanceM, &row.BearingDeg,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		row.QualityFlag = int(qualityFlag)
		result = append(result, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return result, nil
}
