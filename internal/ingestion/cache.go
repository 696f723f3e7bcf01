package ingestion

import (
	"sync"

	"storm-align-lab/internal/domain"
)

// BatchCache memoizes decoded observation batches within one storm's run so
// that windows shared across bins are fetched once. Entries are write-once
// per batch id and read-many; the cache must be fully Cleared between storms
// because batch ids are not guaranteed unique across storms' overlapping
// time windows. There is no size-based eviction.
type BatchCache struct {
	mu      sync.RWMutex
	batches map[string][]domain.Observation
}

// NewBatchCache creates an empty batch cache.
func NewBatchCache() *BatchCache {
	return &BatchCache{batches: make(map[string][]domain.Observation)}
}

// Get returns the cached batch for id. The returned slice is shared and must
// be treated as read-only.
func (c *BatchCache) Get(id string) ([]domain.Observation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obs, ok := c.batches[id]
	return obs, ok
}

// Put stores a batch under id. The first write wins; concurrent fetches of
// the same batch settle on one copy.
func (c *BatchCache) Put(id string, obs []domain.Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.batches[id]; ok {
		return
	}
	c.batches[id] = obs
}

// Clear evicts every entry. Called between storms; clearing is a correctness
// requirement, not an optimization.
func (c *BatchCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = make(map[string][]domain.Observation)
}

// Len returns the number of cached batches.
func (c *BatchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.batches)
}
