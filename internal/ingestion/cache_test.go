package ingestion

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"storm-align-lab/internal/domain"
)

func TestBatchCache_PutGet(t *testing.T) {
	cache := NewBatchCache()

	if _, ok := cache.Get("batch-1"); ok {
		t.Error("empty cache should miss")
	}

	obs := []domain.Observation{
		{ID: "a", Timestamp: time.Date(2022, 9, 26, 0, 1, 0, 0, time.UTC)},
		{ID: "b", Timestamp: time.Date(2022, 9, 26, 0, 1, 10, 0, time.UTC)},
	}
	cache.Put("batch-1", obs)

	got, ok := cache.Get("batch-1")
	if !ok {
		t.Fatal("expected cache hit after Put")
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("unexpected cached batch: %+v", got)
	}
	if cache.Len() != 1 {
		t.Errorf("expected Len 1, got %d", cache.Len())
	}
}

func TestBatchCache_FirstWriteWins(t *testing.T) {
	cache := NewBatchCache()

	cache.Put("batch-1", []domain.Observation{{ID: "first"}})
	cache.Put("batch-1", []domain.Observation{{ID: "second"}})

	got, _ := cache.Get("batch-1")
	if len(got) != 1 || got[0].ID != "first" {
		t.Errorf("second Put must not replace the first: %+v", got)
	}
}

func TestBatchCache_Clear(t *testing.T) {
	cache := NewBatchCache()

	cache.Put("batch-1", []domain.Observation{{ID: "a"}})
	cache.Put("batch-2", []domain.Observation{{ID: "b"}})
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}

	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", cache.Len())
	}
	if _, ok := cache.Get("batch-1"); ok {
		t.Error("cleared entry must not be served")
	}
}

func TestBatchCache_ConcurrentAccess(t *testing.T) {
	cache := NewBatchCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("batch-%d", n%10)
			cache.Put(id, []domain.Observation{{ID: id}})
			cache.Get(id)
		}(i)
	}
	wg.Wait()

	if cache.Len() != 10 {
		t.Errorf("expected 10 distinct batches, got %d", cache.Len())
	}
}
