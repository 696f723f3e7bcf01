package memory

import (
	"context"
	"errors"
	"testing"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/storage"
)

func TestIngestProgressStore_GetSetProgress(t *testing.T) {
	store := NewIngestProgressStore()
	ctx := context.Background()

	// No progress yet
	_, err := store.GetLastIngested(ctx, domain.BasinAtlantic)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound before first save, got %v", err)
	}

	progress := &storage.IngestProgress{Basin: domain.BasinAtlantic, LastTimestamp: 1664150400000}
	if err := store.SetLastIngested(ctx, progress); err != nil {
		t.Fatalf("SetLastIngested failed: %v", err)
	}

	got, err := store.GetLastIngested(ctx, domain.BasinAtlantic)
	if err != nil {
		t.Fatalf("GetLastIngested failed: %v", err)
	}
	if got.LastTimestamp != 1664150400000 {
		t.Errorf("LastTimestamp mismatch: got %d, want 1664150400000", got.LastTimestamp)
	}

	// Basins are independent
	_, err = store.GetLastIngested(ctx, domain.BasinEastPacific)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for other basin, got %v", err)
	}
}

func TestIngestProgressStore_SeenStorms(t *testing.T) {
	store := NewIngestProgressStore()
	ctx := context.Background()

	seen, err := store.IsStormSeen(ctx, "AL092022")
	if err != nil {
		t.Fatalf("IsStormSeen failed: %v", err)
	}
	if seen {
		t.Error("Storm should not be seen before marking")
	}

	if err := store.MarkStormSeen(ctx, "AL092022"); err != nil {
		t.Fatalf("MarkStormSeen failed: %v", err)
	}
	if err := store.MarkStormSeen(ctx, "AL072022"); err != nil {
		t.Fatalf("MarkStormSeen failed: %v", err)
	}

	seen, _ = store.IsStormSeen(ctx, "AL092022")
	if !seen {
		t.Error("Storm should be seen after marking")
	}

	codes, err := store.LoadSeenStorms(ctx)
	if err != nil {
		t.Fatalf("LoadSeenStorms failed: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("Expected 2 seen storms, got %d", len(codes))
	}
	if codes[0] != "AL072022" || codes[1] != "AL092022" {
		t.Errorf("Wrong codes or order: got %v", codes)
	}
}

func TestIngestProgressStore_InvalidInput(t *testing.T) {
	store := NewIngestProgressStore()
	ctx := context.Background()

	if err := store.SetLastIngested(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil progress, got %v", err)
	}
	if err := store.MarkStormSeen(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty code, got %v", err)
	}
}
