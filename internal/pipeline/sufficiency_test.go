package pipeline

import (
	"strings"
	"testing"
	"time"

	"storm-align-lab/internal/domain"
)

func TestCheckSufficiency_AllPass(t *testing.T) {
	result := CheckSufficiency(FixtureTrackFixes(), 30*time.Minute, true)

	if !result.AllPass {
		t.Fatalf("expected all checks to pass, failures: %v", result.Failures())
	}
	if len(result.Checks) != 3 {
		t.Errorf("expected 3 checks with spatial enabled, got %d", len(result.Checks))
	}
	if failures := result.Failures(); len(failures) != 0 {
		t.Errorf("expected no failures, got %v", failures)
	}
}

func TestCheckSufficiency_TooFewFixes(t *testing.T) {
	fixes := FixtureTrackFixes()[:1]
	result := CheckSufficiency(fixes, 30*time.Minute, false)

	if result.AllPass {
		t.Fatal("expected check failure with a single fix")
	}

	failures := strings.Join(result.Failures(), "; ")
	if !strings.Contains(failures, "Track fixes: 1 (need >= 2)") {
		t.Errorf("expected fix count failure, got %q", failures)
	}
	// A single fix also spans no time at all.
	if !strings.Contains(failures, "Track window") {
		t.Errorf("expected window failure, got %q", failures)
	}
}

func TestCheckSufficiency_WindowTooShort(t *testing.T) {
	base := fixtureTime(12, 0, 0)
	fixes := []domain.TrackFix{
		{Timestamp: base, Lat: 26.3, Lon: -82.1, Status: "TS", RadiusMaxWindNmi: 20},
		{Timestamp: base.Add(10 * time.Minute), Lat: 26.31, Lon: -82.11, Status: "TS", RadiusMaxWindNmi: 20},
	}

	result := CheckSufficiency(fixes, 30*time.Minute, false)
	if result.AllPass {
		t.Fatal("expected window check failure")
	}
	failures := strings.Join(result.Failures(), "; ")
	if !strings.Contains(failures, "Track window: 10m0s") {
		t.Errorf("expected window failure with actual span, got %q", failures)
	}
}

func TestCheckSufficiency_RMWOnlyCheckedWithSpatial(t *testing.T) {
	fixes := FixtureTrackFixes()
	for i := range fixes {
		fixes[i].RadiusMaxWindNmi = 0
	}

	withSpatial := CheckSufficiency(fixes, 30*time.Minute, true)
	if withSpatial.AllPass {
		t.Error("expected RMW check failure with spatial enabled")
	}
	if failures := strings.Join(withSpatial.Failures(), "; "); !strings.Contains(failures, "radius of maximum winds: 0") {
		t.Errorf("expected RMW failure, got %q", failures)
	}

	withoutSpatial := CheckSufficiency(fixes, 30*time.Minute, false)
	if !withoutSpatial.AllPass {
		t.Errorf("RMW must not be required without spatial, failures: %v", withoutSpatial.Failures())
	}
	if len(withoutSpatial.Checks) != 2 {
		t.Errorf("expected 2 checks without spatial, got %d", len(withoutSpatial.Checks))
	}
}

func TestCheckSufficiency_UnsortedFixes(t *testing.T) {
	fixes := FixtureTrackFixes()
	fixes[0], fixes[3] = fixes[3], fixes[0]

	result := CheckSufficiency(fixes, 30*time.Minute, true)
	if !result.AllPass {
		t.Fatalf("window must be computed from unsorted fixes, failures: %v", result.Failures())
	}
}
