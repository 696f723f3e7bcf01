package memory

import (
	"context"
	"sort"
	"sync"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// EnvironmentSampleStore is an in-memory implementation of storage.EnvironmentSampleStore.
type EnvironmentSampleStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.EnvironmentSample // storm code -> unix ms -> sample
}

// NewEnvironmentSampleStore creates a new in-memory environment sample store.
func NewEnvironmentSampleStore() *EnvironmentSampleStore {
	return &EnvironmentSampleStore{
		data: make(map[string]map[int64]domain.EnvironmentSample),
	}
}

// InsertBulk adds multiple samples for a storm. Fails entire batch on any
// duplicate (storm_code, timestamp).
func (s *EnvironmentSampleStore) InsertBulk(_ context.Context, stormCode string, samples []domain.EnvironmentSample) error {
	if stormCode == "" {
		return storage.ErrInvalidInput
	}
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[stormCode]

	batchKeys := make(map[int64]struct{}, len(samples))
	for _, sample := range samples {
		key := sample.Timestamp.UnixMilli()
		if _, exists := existing[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int64]domain.EnvironmentSample, len(samples))
		s.data[stormCode] = existing
	}
	for _, sample := range samples {
		existing[sample.Timestamp.UnixMilli()] = sample
	}

	return nil
}

// GetByStormCode retrieves all samples for a storm, ordered by timestamp ASC.
func (s *EnvironmentSampleStore) GetByStormCode(_ context.Context, stormCode string) ([]domain.EnvironmentSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTime := s.data[stormCode]
	result := make([]domain.EnvironmentSample, 0, len(byTime))
	for _, sample := range byTime {
		result = append(result, sample)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

var _ storage.EnvironmentSampleStore = (*EnvironmentSampleStore)(nil)
