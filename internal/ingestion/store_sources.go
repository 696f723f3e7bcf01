package ingestion

import (
	"context"
	"fmt"
	"sort"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/idhash"
	"storm-align-lab/internal/storage"
)

// StoreTrackSource serves track fixes from storage instead of the archive,
// for offline re-runs over already-ingested storms.
type StoreTrackSource struct {
	fixes storage.TrackFixStore
}

// NewStoreTrackSource creates a storage-backed track source.
func NewStoreTrackSource(fixes storage.TrackFixStore) *StoreTrackSource {
	return &StoreTrackSource{fixes: fixes}
}

// FetchTrackFixes returns the stored fixes for one storm.
// A storm with no stored fixes was never ingested: domain.ErrNotFound.
func (s *StoreTrackSource) FetchTrackFixes(ctx context.Context, stormCode string) ([]domain.TrackFix, error) {
	fixes, err := s.fixes.GetByStormCode(ctx, stormCode)
	if err != nil {
		return nil, fmt.Errorf("stored fixes for %s: %w", stormCode, err)
	}
	if len(fixes) == 0 {
		return nil, fmt.Errorf("%w: storm %s has no stored track fixes", domain.ErrNotFound, stormCode)
	}
	return fixes, nil
}

// StoreEnvironmentSource serves environment samples from storage.
type StoreEnvironmentSource struct {
	samples storage.EnvironmentSampleStore
}

// NewStoreEnvironmentSource creates a storage-backed environment source.
func NewStoreEnvironmentSource(samples storage.EnvironmentSampleStore) *StoreEnvironmentSource {
	return &StoreEnvironmentSource{samples: samples}
}

// FetchEnvironmentSamples returns the stored samples for one storm.
// No stored samples is a valid empty result, same as the archive source.
func (s *StoreEnvironmentSource) FetchEnvironmentSamples(ctx context.Context, stormCode string) ([]domain.EnvironmentSample, error) {
	samples, err := s.samples.GetByStormCode(ctx, stormCode)
	if err != nil {
		return nil, fmt.Errorf("stored samples for %s: %w", stormCode, err)
	}
	return samples, nil
}

// StoreObservationSource replays one storm's persisted observation rows as
// an observation source, one pseudo-batch per stored bin. Re-running the
// aggregator against it supports tightening the radius policy without
// refetching the archive; rows outside a narrower radius simply fail the
// distance cut again.
type StoreObservationSource struct {
	observations storage.ObservationStore
	stormCode    string
}

// NewStoreObservationSource creates a storage-backed observation source
// scoped to one storm.
func NewStoreObservationSource(observations storage.ObservationStore, stormCode string) *StoreObservationSource {
	return &StoreObservationSource{observations: observations, stormCode: stormCode}
}

// ListBatches returns one handle per stored bin whose midpoint falls in
// the window.
func (s *StoreObservationSource) ListBatches(ctx context.Context, window TimeWindow) ([]BatchHandle, error) {
	rows, err := s.observations.GetByStormCode(ctx, s.stormCode)
	if err != nil {
		return nil, fmt.Errorf("stored observations for %s: %w", s.stormCode, err)
	}

	seen := make(map[int64]bool)
	var handles []BatchHandle
	for _, row := range rows {
		if !window.Contains(row.BinMidpoint) {
			continue
		}
		midMs := row.BinMidpoint.UnixMilli()
		if seen[midMs] {
			continue
		}
		seen[midMs] = true

		name := fmt.Sprintf("%s/%d", s.stormCode, midMs)
		handles = append(handles, BatchHandle{
			ID:        idhash.ComputeBatchID("store", name),
			URL:       name,
			StartTime: row.BinMidpoint,
		})
	}

	sort.Slice(handles, func(i, j int) bool {
		return handles[i].StartTime.Before(handles[j].StartTime)
	})
	return handles, nil
}

// ReadBatch returns the stored rows behind a handle as plain observations;
// stored distance and bearing are recomputed downstream.
func (s *StoreObservationSource) ReadBatch(ctx context.Context, handle BatchHandle) ([]domain.Observation, error) {
	rows, err := s.observations.GetByBin(ctx, s.stormCode, handle.StartTime)
	if err != nil {
		return nil, fmt.Errorf("stored bin %s: %w", handle.URL, err)
	}

	observations := make([]domain.Observation, 0, len(rows))
	for _, row := range rows {
		observations = append(observations, domain.Observation{
			ID:          row.ID,
			Timestamp:   row.Timestamp,
			Lat:         row.Lat,
			Lon:         row.Lon,
			AreaM2:      row.AreaM2,
			EnergyJ:     row.EnergyJ,
			QualityFlag: row.QualityFlag,
		})
	}
	return observations, nil
}

var (
	_ TrackSource       = (*StoreTrackSource)(nil)
	_ EnvironmentSource = (*StoreEnvironmentSource)(nil)
	_ ObservationSource = (*StoreObservationSource)(nil)
)
