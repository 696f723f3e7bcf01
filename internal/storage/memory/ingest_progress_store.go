package memory

import (
	"context"
	"sort"
	"sync"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

// IngestProgressStore is an in-memory implementation of storage.IngestProgressStore.
type IngestProgressStore struct {
	mu       sync.RWMutex
	progress map[domain.Basin]*storage.IngestProgress
	seen     map[string]bool
}

// NewIngestProgressStore creates a new in-memory ingest progress store.
func NewIngestProgressStore() *IngestProgressStore {
	return &IngestProgressStore{
		progress: make(map[domain.Basin]*storage.IngestProgress),
		seen:     make(map[string]bool),
	}
}

// GetLastIngested returns the last ingested position for a basin.
func (s *IngestProgressStore) GetLastIngested(_ context.Context, basin domain.Basin) (*storage.IngestProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	progress, exists := s.progress[basin]
	if !exists {
		return nil, storage.ErrNotFound
	}

	progressCopy := *progress
	return &progressCopy, nil
}

// SetLastIngested saves the last ingested position for a basin.
func (s *IngestProgressStore) SetLastIngested(_ context.Context, progress *storage.IngestProgress) error {
	if progress == nil || progress.Basin == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	progressCopy := *progress
	s.progress[progress.Basin] = &progressCopy

	return nil
}

// IsStormSeen checks if a storm code has been ingested.
func (s *IngestProgressStore) IsStormSeen(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.seen[code], nil
}

// MarkStormSeen records that a storm code has been ingested.
func (s *IngestProgressStore) MarkStormSeen(_ context.Context, code string) error {
	if code == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[code] = true

	return nil
}

// LoadSeenStorms returns all seen storm codes.
func (s *IngestProgressStore) LoadSeenStorms(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := make([]string, 0, len(s.seen))
	for code := range s.seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	return codes, nil
}

var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)
