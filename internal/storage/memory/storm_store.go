package memory

import (
	"context"
	"sort"
	"sync"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// StormStore is an in-memory implementation of storage.StormStore.
type StormStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Storm // keyed by ATCF code
}

// NewStormStore creates a new in-memory storm store.
func NewStormStore() *StormStore {
	return &StormStore{
		data: make(map[string]*domain.Storm),
	}
}

// Insert adds a new storm. Returns ErrDuplicateKey if the code exists.
func (s *StormStore) Insert(_ context.Context, storm *domain.Storm) error {
	if storm == nil || storm.Code == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[storm.Code]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	stormCopy := *storm
	s.data[storm.Code] = &stormCopy
	return nil
}

// GetByCode retrieves a storm by ATCF code. Returns ErrNotFound if not exists.
func (s *StormStore) GetByCode(_ context.Context, code string) (*domain.Storm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	storm, exists := s.data[code]
	if !exists {
		return nil, storage.ErrNotFound
	}

	stormCopy := *storm
	return &stormCopy, nil
}

// ListByBasin retrieves all storms for a basin, ordered by start time ASC.
func (s *StormStore) ListByBasin(_ context.Context, basin domain.Basin) ([]*domain.Storm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Storm
	for _, storm := range s.data {
		if storm.Basin == basin {
			stormCopy := *storm
			result = append(result, &stormCopy)
		}
	}

	sortStormsByStart(result)
	return result, nil
}

// ListByYearRange retrieves storms whose start year falls within
// [minYear, maxYear], ordered by start time ASC.
func (s *StormStore) ListByYearRange(_ context.Context, minYear, maxYear int) ([]*domain.Storm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Storm
	for _, storm := range s.data {
		if storm.Year >= minYear && storm.Year <= maxYear {
			stormCopy := *storm
			result = append(result, &stormCopy)
		}
	}

	sortStormsByStart(result)
	return result, nil
}

func sortStormsByStart(storms []*domain.Storm) {
	sort.Slice(storms, func(i, j int) bool {
		if !storms[i].StartTime.Equal(storms[j].StartTime) {
			return storms[i].StartTime.Before(storms[j].StartTime)
		}
		return storms[i].Code < storms[j].Code
	})
}

// Verify interface compliance at compile time.
var _ storage.StormStore = (*StormStore)(nil)
