package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

func TestEnvironmentSampleStore_InsertBulkAndGet(t *testing.T) {
	store := NewEnvironmentSampleStore()
	ctx := context.Background()

	samples := []domain.EnvironmentSample{
		{Timestamp: time.Date(2022, 9, 26, 0, 0, 0, 0, time.UTC), ShearMagnitudeKt: 8.5, ShearDirectionDeg: 245},
		{Timestamp: time.Date(2022, 9, 26, 6, 0, 0, 0, time.UTC), ShearMagnitudeKt: 11.2, ShearDirectionDeg: 250},
	}

	err := store.InsertBulk(ctx, "AL092022", samples)
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByStormCode(ctx, "AL092022")
	if err != nil {
		t.Fatalf("GetByStormCode failed: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(result))
	}
	if result[1].ShearMagnitudeKt != 11.2 {
		t.Errorf("Second sample ShearMagnitudeKt mismatch: got %v, want 11.2", result[1].ShearMagnitudeKt)
	}
}

func TestEnvironmentSampleStore_DuplicateKey(t *testing.T) {
	store := NewEnvironmentSampleStore()
	ctx := context.Background()

	samples := []domain.EnvironmentSample{
		{Timestamp: time.Date(2022, 9, 26, 0, 0, 0, 0, time.UTC), ShearMagnitudeKt: 8.5},
	}

	if err := store.InsertBulk(ctx, "AL092022", samples); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, "AL092022", samples)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestEnvironmentSampleStore_OrderByTimestamp(t *testing.T) {
	store := NewEnvironmentSampleStore()
	ctx := context.Background()

	samples := []domain.EnvironmentSample{
		{Timestamp: time.Date(2022, 9, 26, 18, 0, 0, 0, time.UTC), ShearMagnitudeKt: 14.0},
		{Timestamp: time.Date(2022, 9, 26, 6, 0, 0, 0, time.UTC), ShearMagnitudeKt: 11.2},
		{Timestamp: time.Date(2022, 9, 26, 12, 0, 0, 0, time.UTC), ShearMagnitudeKt: 12.8},
	}

	if err := store.InsertBulk(ctx, "AL092022", samples); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, _ := store.GetByStormCode(ctx, "AL092022")

	for i := 1; i < len(result); i++ {
		if result[i].Timestamp.Before(result[i-1].Timestamp) {
			t.Errorf("Results not ordered: %v < %v", result[i].Timestamp, result[i-1].Timestamp)
		}
	}
}

func TestEnvironmentSampleStore_UnknownStormIsEmpty(t *testing.T) {
	store := NewEnvironmentSampleStore()
	ctx := context.Background()

	result, err := store.GetByStormCode(ctx, "AL999999")
	if err != nil {
		t.Fatalf("GetByStormCode failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected empty result for unknown storm, got %d", len(result))
	}
}

func TestEnvironmentSampleStore_InvalidInput(t *testing.T) {
	store := NewEnvironmentSampleStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, "", []domain.EnvironmentSample{{Timestamp: time.Now()}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty storm code, got %v", err)
	}
}
