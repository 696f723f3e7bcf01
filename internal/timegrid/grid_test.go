package timegrid

import (
	"errors"
	"testing"
	"time"

	"storm-align-lab/internal/domain"
)

func ts(y int, mo time.Month, d, h, min int) time.Time {
	return time.Date(y, mo, d, h, min, 0, 0, time.UTC)
}

func TestMakeBins_ReferenceScenario(t *testing.T) {
	// 2022-09-26 00:05 .. 01:40 at 30 minutes must center on :15 and :45.
	bins, err := MakeBins(ts(2022, 9, 26, 0, 5), ts(2022, 9, 26, 1, 40), 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantMid := []time.Time{
		ts(2022, 9, 26, 0, 15),
		ts(2022, 9, 26, 0, 45),
		ts(2022, 9, 26, 1, 15),
	}
	wantStart := []time.Time{
		ts(2022, 9, 26, 0, 0),
		ts(2022, 9, 26, 0, 30),
		ts(2022, 9, 26, 1, 0),
	}
	wantEnd := []time.Time{
		ts(2022, 9, 26, 0, 30),
		ts(2022, 9, 26, 1, 0),
		ts(2022, 9, 26, 1, 30),
	}

	if len(bins) != len(wantMid) {
		t.Fatalf("expected %d bins, got %d", len(wantMid), len(bins))
	}
	for i, b := range bins {
		if !b.Midpoint.Equal(wantMid[i]) {
			t.Errorf("bin %d: expected midpoint %v, got %v", i, wantMid[i], b.Midpoint)
		}
		if !b.Start.Equal(wantStart[i]) {
			t.Errorf("bin %d: expected start %v, got %v", i, wantStart[i], b.Start)
		}
		if !b.End.Equal(wantEnd[i]) {
			t.Errorf("bin %d: expected end %v, got %v", i, wantEnd[i], b.End)
		}
	}
}

func TestMakeBins_StartOnMidpoint(t *testing.T) {
	// A start exactly on a phase-aligned midpoint keeps that midpoint.
	bins, err := MakeBins(ts(2022, 9, 26, 0, 15), ts(2022, 9, 26, 1, 0), 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bins) == 0 {
		t.Fatal("expected bins, got none")
	}
	if !bins[0].Midpoint.Equal(ts(2022, 9, 26, 0, 15)) {
		t.Errorf("expected first midpoint 00:15, got %v", bins[0].Midpoint)
	}
}

func TestMakeBins_ContiguousAndIncreasing(t *testing.T) {
	bins, err := MakeBins(ts(2022, 9, 20, 6, 0), ts(2022, 9, 22, 18, 0), 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bins) == 0 {
		t.Fatal("expected bins, got none")
	}
	for i, b := range bins {
		if err := b.Validate(); err != nil {
			t.Fatalf("bin %d invalid: %v", i, err)
		}
		if i > 0 {
			if !bins[i-1].End.Equal(b.Start) {
				t.Errorf("bin %d not contiguous: prev end %v, start %v", i, bins[i-1].End, b.Start)
			}
			if !bins[i-1].Midpoint.Before(b.Midpoint) {
				t.Errorf("bin %d midpoints not increasing", i)
			}
		}
	}
}

func TestMakeBins_PhaseInvariant(t *testing.T) {
	bins, err := MakeBins(ts(2023, 8, 27, 11, 7), ts(2023, 8, 28, 2, 0), 10*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, b := range bins {
		// 10-minute bins center on :x5.
		if b.Midpoint.Minute()%10 != 5 {
			t.Errorf("bin %d midpoint %v not phase-aligned", i, b.Midpoint)
		}
		if b.Midpoint.Second() != 0 || b.Midpoint.Nanosecond() != 0 {
			t.Errorf("bin %d midpoint %v has sub-minute component", i, b.Midpoint)
		}
	}
}

func TestMakeBins_WindowTooShort(t *testing.T) {
	// No phase-aligned midpoint fits: empty result, not an error.
	bins, err := MakeBins(ts(2022, 9, 26, 0, 16), ts(2022, 9, 26, 0, 20), 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bins) != 0 {
		t.Errorf("expected no bins, got %d", len(bins))
	}
}

func TestMakeBins_EndBeforeStart(t *testing.T) {
	_, err := MakeBins(ts(2022, 9, 26, 1, 0), ts(2022, 9, 26, 0, 0), 30*time.Minute)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMakeBins_BadInterval(t *testing.T) {
	cases := []time.Duration{0, -30 * time.Minute, 45 * time.Second, 7 * time.Minute, 25 * time.Minute}
	for _, interval := range cases {
		_, err := MakeBins(ts(2022, 9, 26, 0, 0), ts(2022, 9, 26, 6, 0), interval)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("interval %v: expected ErrInvalidInput, got %v", interval, err)
		}
	}
}

func TestMakeBins_Idempotent(t *testing.T) {
	a, err := MakeBins(ts(2022, 9, 26, 0, 5), ts(2022, 9, 27, 0, 0), 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := MakeBins(ts(2022, 9, 26, 0, 5), ts(2022, 9, 27, 0, 0), 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("expected identical grids, got %d vs %d bins", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("bin %d differs between runs", i)
		}
	}
}
