package memory

import (
	"context"
	"sort"
	"sync"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// TrackPointStore is an in-memory implementation of storage.TrackPointStore.
type TrackPointStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.InterpolatedTrackPoint // storm code -> unix ms -> point
}

// NewTrackPointStore creates a new in-memory track point store.
func NewTrackPointStore() *TrackPointStore {
	return &TrackPointStore{
		data: make(map[string]map[int64]domain.InterpolatedTrackPoint),
	}
}

// InsertBulk adds the interpolated points for a storm's run. Fails entire
// batch on any duplicate (storm_code, timestamp).
func (s *TrackPointStore) InsertBulk(_ context.Context, stormCode string, points []domain.InterpolatedTrackPoint) error {
	if stormCode == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[stormCode]

	batchKeys := make(map[int64]struct{}, len(points))
	for _, point := range points {
		key := point.Timestamp.UnixMilli()
		if _, exists := existing[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int64]domain.InterpolatedTrackPoint, len(points))
		s.data[stormCode] = existing
	}
	for _, point := range points {
		existing[point.Timestamp.UnixMilli()] = point
	}

	return nil
}

// GetByStormCode retrieves all points for a storm, ordered by timestamp ASC.
func (s *TrackPointStore) GetByStormCode(_ context.Context, stormCode string) ([]domain.InterpolatedTrackPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTime := s.data[stormCode]
	result := make([]domain.InterpolatedTrackPoint, 0, len(byTime))
	for _, point := range byTime {
		result = append(result, point)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

var _ storage.TrackPointStore = (*TrackPointStore)(nil)
