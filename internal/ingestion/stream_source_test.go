package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/feed"
)

type fakeGroupFeed struct {
	events chan feed.GroupEvent
	err    error
}

func (f *fakeGroupFeed) SubscribeGroups(ctx context.Context, filter feed.Filter) (<-chan feed.GroupEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func groupEventAt(ts time.Time) feed.GroupEvent {
	return feed.GroupEvent{
		Platform:  "G16",
		Timestamp: ts,
		Lat:       26.9,
		Lon:       -82.3,
		AreaM2:    1.2e8,
		EnergyJ:   4.1e-15,
	}
}

func waitForBatches(t *testing.T, s *StreamSource, window TimeWindow, want int) []BatchHandle {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		handles, err := s.ListBatches(context.Background(), window)
		if err != nil {
			t.Fatalf("ListBatches failed: %v", err)
		}
		if len(handles) >= want {
			return handles
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d batches, have %d", want, len(handles))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamSource_BuffersByMinute(t *testing.T) {
	events := make(chan feed.GroupEvent, 8)
	source, err := NewStreamSource(context.Background(), StreamSourceOptions{
		Feed:   &fakeGroupFeed{events: events},
		Logger: quietIngestLogger(),
	})
	if err != nil {
		t.Fatalf("NewStreamSource failed: %v", err)
	}
	defer source.Close()

	base := time.Date(2022, 9, 28, 18, 3, 0, 0, time.UTC)
	events <- groupEventAt(base.Add(5 * time.Second))
	events <- groupEventAt(base.Add(20 * time.Second))
	events <- groupEventAt(base.Add(70 * time.Second)) // next minute

	window := TimeWindow{Start: base, End: base.Add(5 * time.Minute)}
	handles := waitForBatches(t, source, window, 2)

	if len(handles) != 2 {
		t.Fatalf("expected 2 minute buckets, got %d", len(handles))
	}
	if !handles[0].StartTime.Equal(base) {
		t.Errorf("expected first bucket at %v, got %v", base, handles[0].StartTime)
	}
	if !handles[1].StartTime.Equal(base.Add(time.Minute)) {
		t.Errorf("expected second bucket at %v, got %v", base.Add(time.Minute), handles[1].StartTime)
	}

	first, err := source.ReadBatch(context.Background(), handles[0])
	if err != nil {
		t.Fatalf("ReadBatch failed: %v", err)
	}
	if len(first) != 2 {
		t.Errorf("expected 2 detections in first bucket, got %d", len(first))
	}
	if first[0].ID == "" || first[0].ID == first[1].ID {
		t.Error("expected distinct non-empty observation ids")
	}
	if first[0].Lat != 26.9 || first[0].EnergyJ != 4.1e-15 {
		t.Errorf("detection fields not preserved: %+v", first[0])
	}
}

func TestStreamSource_WindowFiltering(t *testing.T) {
	events := make(chan feed.GroupEvent, 8)
	source, err := NewStreamSource(context.Background(), StreamSourceOptions{
		Feed:   &fakeGroupFeed{events: events},
		Logger: quietIngestLogger(),
	})
	if err != nil {
		t.Fatalf("NewStreamSource failed: %v", err)
	}
	defer source.Close()

	base := time.Date(2022, 9, 28, 18, 0, 0, 0, time.UTC)
	events <- groupEventAt(base.Add(30 * time.Second))
	events <- groupEventAt(base.Add(3*time.Minute + 30*time.Second))

	// Wait until both buckets exist, then narrow the window.
	wide := TimeWindow{Start: base, End: base.Add(10 * time.Minute)}
	waitForBatches(t, source, wide, 2)

	narrow := TimeWindow{Start: base, End: base.Add(time.Minute)}
	handles, err := source.ListBatches(context.Background(), narrow)
	if err != nil {
		t.Fatalf("ListBatches failed: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("expected 1 bucket in narrow window, got %d", len(handles))
	}
	if !handles[0].StartTime.Equal(base) {
		t.Errorf("expected bucket at %v, got %v", base, handles[0].StartTime)
	}
}

func TestStreamSource_EvictsBeyondHorizon(t *testing.T) {
	events := make(chan feed.GroupEvent, 8)
	source, err := NewStreamSource(context.Background(), StreamSourceOptions{
		Feed:    &fakeGroupFeed{events: events},
		Horizon: time.Minute,
		Logger:  quietIngestLogger(),
	})
	if err != nil {
		t.Fatalf("NewStreamSource failed: %v", err)
	}
	defer source.Close()

	base := time.Date(2022, 9, 28, 18, 0, 0, 0, time.UTC)
	events <- groupEventAt(base.Add(10 * time.Second))
	events <- groupEventAt(base.Add(5 * time.Minute))

	wide := TimeWindow{Start: base, End: base.Add(10 * time.Minute)}
	deadline := time.Now().Add(2 * time.Second)
	for {
		handles, err := source.ListBatches(context.Background(), wide)
		if err != nil {
			t.Fatalf("ListBatches failed: %v", err)
		}
		if len(handles) == 1 && handles[0].StartTime.Equal(base.Add(5*time.Minute)) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected old bucket evicted, have %d handles", len(handles))
		}
		time.Sleep(10 * time.Millisecond)
	}

	evicted := BatchHandle{ID: streamBucketID(base.Unix()), StartTime: base}
	if _, err := source.ReadBatch(context.Background(), evicted); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for evicted bucket, got %v", err)
	}
}

func TestStreamSource_RequiresFeed(t *testing.T) {
	_, err := NewStreamSource(context.Background(), StreamSourceOptions{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStreamSource_SubscribeError(t *testing.T) {
	wantErr := errors.New("relay refused")
	_, err := NewStreamSource(context.Background(), StreamSourceOptions{
		Feed:   &fakeGroupFeed{err: wantErr},
		Logger: quietIngestLogger(),
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected subscribe error surfaced, got %v", err)
	}
}
