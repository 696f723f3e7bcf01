package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
//
// Unlike the other stores it tolerates re-insertion of the same row:
// the production backend is a ClickHouse ReplacingMergeTree, where a
// repeated key silently supersedes the previous version. Retried storm
// runs therefore overwrite rather than error.
type ObservationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ObservationRow // stormCode|binMs|id -> row
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data: make(map[string]*domain.ObservationRow),
	}
}

func observationKey(row *domain.ObservationRow) string {
	return fmt.Sprintf("%s|%d|%s", row.StormCode, row.BinMidpoint.UnixMilli(), row.ID)
}

// InsertBulk adds aggregated observation rows, replacing any rows that
// share the same (storm_code, bin_midpoint, id) key.
func (s *ObservationStore) InsertBulk(_ context.Context, rows []*domain.ObservationRow) error {
	for _, row := range rows {
		if row == nil || row.StormCode == "" || row.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		rowCopy := *row
		s.data[observationKey(row)] = &rowCopy
	}

	return nil
}

// GetByStormCode retrieves all observation rows for a storm, ordered by
// bin midpoint then observation timestamp ASC.
func (s *ObservationStore) GetByStormCode(_ context.Context, stormCode string) ([]*domain.ObservationRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ObservationRow
	for _, row := range s.data {
		if row.StormCode == stormCode {
			rowCopy := *row
			result = append(result, &rowCopy)
		}
	}

	sortObservationRows(result)

	return result, nil
}

// GetByBin retrieves the observation rows for one storm bin, ordered by
// observation timestamp ASC.
func (s *ObservationStore) GetByBin(_ context.Context, stormCode string, binMidpoint time.Time) ([]*domain.ObservationRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ObservationRow
	for _, row := range s.data {
		if row.StormCode == stormCode && row.BinMidpoint.Equal(binMidpoint) {
			rowCopy := *row
			result = append(result, &rowCopy)
		}
	}

	sortObservationRows(result)

	return result, nil
}

func sortObservationRows(rows []*domain.ObservationRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].BinMidpoint.Equal(rows[j].BinMidpoint) {
			return rows[i].BinMidpoint.Before(rows[j].BinMidpoint)
		}
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		}
		return rows[i].ID < rows[j].ID
	})
}

var _ storage.ObservationStore = (*ObservationStore)(nil)
