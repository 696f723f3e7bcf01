package stub

import (
	"context"
	"fmt"
	"sort"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/ingestion"
)

// StubTrackSource returns fixed in-memory track fixes for testing.
// Fixes can be intentionally unordered to test sorting downstream.
// Implements ingestion.TrackSource.
type StubTrackSource struct {
	fixes map[string][]domain.TrackFix // keyed by storm code
}

// NewStubTrackSource creates a new stub track source with the given fixes.
func NewStubTrackSource(fixes map[string][]domain.TrackFix) *StubTrackSource {
	return &StubTrackSource{fixes: fixes}
}

// FetchTrackFixes returns the fixes for one storm code.
// Returns copies to prevent mutation.
func (s *StubTrackSource) FetchTrackFixes(_ context.Context, stormCode string) ([]domain.TrackFix, error) {
	fixes, exists := s.fixes[stormCode]
	if !exists {
		return nil, fmt.Errorf("%w: storm %s", domain.ErrNotFound, stormCode)
	}
	result := make([]domain.TrackFix, len(fixes))
	copy(result, fixes)
	return result, nil
}

// StubEnvironmentSource returns fixed in-memory diagnostic samples for
// testing. Implements ingestion.EnvironmentSource.
type StubEnvironmentSource struct {
	samples map[string][]domain.EnvironmentSample // keyed by storm code
}

// NewStubEnvironmentSource creates a new stub environment source.
func NewStubEnvironmentSource(samples map[string][]domain.EnvironmentSample) *StubEnvironmentSource {
	return &StubEnvironmentSource{samples: samples}
}

// FetchEnvironmentSamples returns the samples for one storm code.
// Unknown storms yield an empty slice, matching the archive source.
func (s *StubEnvironmentSource) FetchEnvironmentSamples(_ context.Context, stormCode string) ([]domain.EnvironmentSample, error) {
	samples := s.samples[stormCode]
	result := make([]domain.EnvironmentSample, len(samples))
	copy(result, samples)
	return result, nil
}

// StubObservationSource returns fixed in-memory observation batches for
// testing. Implements ingestion.ObservationSource.
type StubObservationSource struct {
	handles []ingestion.BatchHandle
	batches map[string][]domain.Observation // keyed by batch ID
}

// NewStubObservationSource creates a new stub observation source.
func NewStubObservationSource(handles []ingestion.BatchHandle, batches map[string][]domain.Observation) *StubObservationSource {
	return &StubObservationSource{handles: handles, batches: batches}
}

// ListBatches returns the handles whose start falls inside the window,
// sorted by start time.
func (s *StubObservationSource) ListBatches(_ context.Context, window ingestion.TimeWindow) ([]ingestion.BatchHandle, error) {
	var result []ingestion.BatchHandle
	for _, handle := range s.handles {
		if window.Contains(handle.StartTime) {
			result = append(result, handle)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

// ReadBatch returns the observations behind a handle.
// Returns copies to prevent mutation.
func (s *StubObservationSource) ReadBatch(_ context.Context, handle ingestion.BatchHandle) ([]domain.Observation, error) {
	observations, exists := s.batches[handle.ID]
	if !exists {
		return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, handle.ID)
	}
	result := make([]domain.Observation, len(observations))
	copy(result, observations)
	return result, nil
}

var (
	_ ingestion.TrackSource       = (*StubTrackSource)(nil)
	_ ingestion.EnvironmentSource = (*StubEnvironmentSource)(nil)
	_ ingestion.ObservationSource = (*StubObservationSource)(nil)
)
