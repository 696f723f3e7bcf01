package memory

import (
	"context"
	"sort"
	"sync"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// TrackFixStore is an in-memory implementation of storage.TrackFixStore.
type TrackFixStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.TrackFix // storm code -> unix ms -> fix
}

// NewTrackFixStore creates a new in-memory track fix store.
func NewTrackFixStore() *TrackFixStore {
	return &TrackFixStore{
		data: make(map[string]map[int64]domain.TrackFix),
	}
}

// InsertBulk adds multiple fixes for a storm. Fails entire batch on any
// duplicate (storm_code, timestamp).
func (s *TrackFixStore) InsertBulk(_ context.Context, stormCode string, fixes []domain.TrackFix) error {
	if stormCode == "" {
		return storage.ErrInvalidInput
	}
	if len(fixes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[stormCode]

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[int64]struct{}, len(fixes))
	for _, fix := range fixes {
		key := fix.Timestamp.UnixMilli()
		if _, exists := existing[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[int64]domain.TrackFix, len(fixes))
		s.data[stormCode] = existing
	}
	for _, fix := range fixes {
		existing[fix.Timestamp.UnixMilli()] = fix
	}

	return nil
}

// GetByStormCode retrieves all fixes for a storm, ordered by timestamp ASC.
func (s *TrackFixStore) GetByStormCode(_ context.Context, stormCode string) ([]domain.TrackFix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTime := s.data[stormCode]
	result := make([]domain.TrackFix, 0, len(byTime))
	for _, fix := range byTime {
		result = append(result, fix)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

var _ storage.TrackFixStore = (*TrackFixStore)(nil)
