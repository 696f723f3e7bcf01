package memory

import (
	"context"
	"sort"
	"sync"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// EnvironmentPointStore is an in-memory implementation of storage.EnvironmentPointStore.
type EnvironmentPointStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]domain.InterpolatedEnvironmentPoint // storm code -> unix ms -> point
}

// NewEnvironmentPointStore creates a new in-memory environment point store.
func NewEnvironmentPointStore() *EnvironmentPointStore {
	return &EnvironmentPointStore{
		data: make(map[string]map[int64]domain.InterpolatedEnvironmentPoint),
	}
}

// InsertBulk adds the interpolated points for a storm's run. Fails entire
// batch on any duplicate (storm_code, timestamp).
func (s *EnvironmentPointStore) InsertBulk(_ context.Context, stormCode string, points []domain.InterpolatedEnvironmentPoint) error {
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
		existing = make(map[int64]domain.InterpolatedEnvironmentPoint, len(points))
		s.data[stormCode] = existing
	}
	for _, point := range points {
		existing[point.Timestamp.UnixMilli()] = clonePoint(point)
	}

	return nil
}

// GetByStormCode retrieves all points for a storm, ordered by timestamp ASC.
func (s *EnvironmentPointStore) GetByStormCode(_ context.Context, stormCode string) ([]domain.InterpolatedEnvironmentPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTime := s.data[stormCode]
	result := make([]domain.InterpolatedEnvironmentPoint, 0, len(byTime))
	for _, point := range byTime {
		result = append(result, clonePoint(point))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// clonePoint copies a point including its nullable fields, so callers can
// never share pointers with the store.
func clonePoint(p domain.InterpolatedEnvironmentPoint) domain.InterpolatedEnvironmentPoint {
	out := domain.InterpolatedEnvironmentPoint{Timestamp: p.Timestamp}
	if p.ShearMagnitudeKt != nil {
		v := *p.ShearMagnitudeKt
		out.ShearMagnitudeKt = &v
	}
	if p.ShearDirectionDeg != nil {
		v := *p.ShearDirectionDeg
		out.ShearDirectionDeg = &v
	}
	return out
}

var _ storage.EnvironmentPointStore = (*EnvironmentPointStore)(nil)
