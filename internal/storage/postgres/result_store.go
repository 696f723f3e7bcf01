package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL. Per-stage
// outcomes are persisted as a JSONB array alongside the flat columns.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// stageOutcomeRecord is the JSONB shape of one stage outcome.
type stageOutcomeRecord struct {
	Stage string `json:"stage"`
	OK    bool   `json:"ok"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// Insert adds a storm's run result. Returns ErrDuplicateKey if
// (run_id, storm_code) exists.
func (s *ResultStore) Insert(ctx context.Context, r *domain.StormResult) error {
	stages := make([]stageOutcomeRecord, 0, len(r.Stages))
	for _, o := range r.Stages {
		stages = append(stages, stageOutcomeRecord{
			Stage: string(o.Stage),
			OK:    o.OK,
			Rows:  o.Rows,
			Error: o.Error,
		})
	}
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return fmt.Errorf("marshal stage outcomes: %w", err)
	}

	query := `
		INSERT INTO run_results (
			run_id, storm_code, storm_name, status, failed_stage,
			error, stages, artifact_dir, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.pool.Exec(ctx, query,
		r.RunID,
		r.StormCode,
		r.StormName,
		string(r.Status),
		string(r.FailedStage),
		r.Error,
		stagesJSON,
		r.ArtifactDir,
		r.StartedAt,
		r.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run result: %w", err)
	}
	return nil
}

// GetByRunID retrieves all results for a run, ordered by storm code ASC.
func (s *ResultStore) GetByRunID(ctx context.Context, runID string) ([]*domain.StormResult, error) {
	query := `
		SELECT run_id, storm_code, storm_name, status, failed_stage,
		       error, stages, artifact_dir, started_at, finished_at
		FROM run_results
		WHERE run_id = $1
		ORDER BY storm_code ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get results by run id: %w", err)
	}
	defer rows.Close()

	return scanStormResults(rows)
}

// GetByStormCode retrieves all results recorded for a storm across runs,
// ordered by started_at ASC.
func (s *ResultStore) GetByStormCode(ctx context.Context, stormCode string) ([]*domain.StormResult, error) {
	query := `
		SELECT run_id, storm_code, storm_name, status, failed_stage,
		       error, stages, artifact_dir, started_at, finished_at
		FROM run_results
		WHERE storm_code = $1
		ORDER BY started_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, stormCode)
	if err != nil {
		return nil, fmt.Errorf("get results by storm code: %w", err)
	}
	defer rows.Close()

	return scanStormResults(rows)
}

// scanStormResults scans multiple rows into a slice of StormResult.
func scanStormResults(rows pgx.Rows) ([]*domain.StormResult, error) {
	var results []*domain.StormResult

	for rows.Next() {
		var r domain.StormResult
		var statusStr, failedStageStr string
		var stagesJSON []byte

		err := rows.Scan(
			&r.RunID,
			&r.StormCode,
			&r.StormName,
			&statusStr,
			&failedStageStr,
			&r.Error,
			&stagesJSON,
			&r.ArtifactDir,
			&r.StartedAt,
			&r.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run result row: %w", err)
		}

		r.Status = domain.StormStatus(statusStr)
		r.FailedStage = domain.Stage(failedStageStr)

		var stages []stageOutcomeRecord
		if err := json.Unmarshal(stagesJSON, &stages); err != nil {
			return nil, fmt.Errorf("unmarshal stage outcomes: %w", err)
		}
		for _, o := range stages {
			r.Stages = append(r.Stages, domain.StageOutcome{
				Stage: domain.Stage(o.Stage),
				OK:    o.OK,
				Rows:  o.Rows,
				Error: o.Error,
			})
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run result rows: %w", err)
	}

	return results, nil
}
