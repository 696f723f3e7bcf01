package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StormResult // runID|stormCode -> result
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		data: make(map[string]*domain.StormResult),
	}
}

func resultKey(runID, stormCode string) string {
	return fmt.Sprintf("%s|%s", runID, stormCode)
}

// Insert adds one storm's run result. Fails with ErrDuplicateKey if a
// result for (run_id, storm_code) already exists.
func (s *ResultStore) Insert(_ context.Context, result *domain.StormResult) error {
	if result == nil || result.RunID == "" || result.StormCode == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := resultKey(result.RunID, result.StormCode)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = cloneResult(result)

	return nil
}

// GetByRunID retrieves all storm results for one batch run, ordered by
// storm code ASC.
func (s *ResultStore) GetByRunID(_ context.Context, runID string) ([]*domain.StormResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StormResult
	for _, r := range s.data {
		if r.RunID == runID {
			result = append(result, cloneResult(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StormCode < result[j].StormCode
	})

	return result, nil
}

// GetByStormCode retrieves every recorded run result for a storm, ordered
// by start time ASC.
func (s *ResultStore) GetByStormCode(_ context.Context, stormCode string) ([]*domain.StormResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StormResult
	for _, r := range s.data {
		if r.StormCode == stormCode {
			result = append(result, cloneResult(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	return result, nil
}

// cloneResult deep-copies a result so the store and its callers never
// share the Stages slice.
func cloneResult(r *domain.StormResult) *domain.StormResult {
	out := *r
	if r.Stages != nil {
		out.Stages = make([]domain.StageOutcome, len(r.Stages))
		copy(out.Stages, r.Stages)
	}
	return &out
}

var _ storage.ResultStore = (*ResultStore)(nil)
