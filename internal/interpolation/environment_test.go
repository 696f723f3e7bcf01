package interpolation

import (
	"errors"
	"testing"
	"time"

	"storm-align-lab/internal/domain"
)

func mkSample(at time.Time, mag, dir float64) domain.EnvironmentSample {
	return domain.EnvironmentSample{
		Timestamp:         at,
		ShearMagnitudeKt:  mag,
		ShearDirectionDeg: dir,
	}
}

func TestEnvironment_ExactSampleAtMidpoint(t *testing.T) {
	samples := []domain.EnvironmentSample{mkSample(t0.Add(time.Hour), 12.5, 245)}
	bins := []domain.TimeBin{mkBin(t0.Add(time.Hour), 30*time.Minute)}

	points, err := Environment(samples, bins, 3*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !points[0].HasShear() {
		t.Fatal("expected shear value, got missing")
	}
	if *points[0].ShearMagnitudeKt != 12.5 {
		t.Errorf("expected magnitude 12.5, got %f", *points[0].ShearMagnitudeKt)
	}
	if *points[0].ShearDirectionDeg != 245 {
		t.Errorf("expected direction 245, got %f", *points[0].ShearDirectionDeg)
	}
}

func TestEnvironment_NearestWithinTolerance(t *testing.T) {
	// Samples at t0 and t0+6h, query at t0+4h: the t0+6h sample is two hours
	// away and inside the three-hour tolerance, so its value is assigned.
	samples := []domain.EnvironmentSample{
		mkSample(t0, 10.0, 200),
		mkSample(t0.Add(6*time.Hour), 20.0, 220),
	}
	bins := []domain.TimeBin{mkBin(t0.Add(4*time.Hour), 30*time.Minute)}

	points, err := Environment(samples, bins, 3*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !points[0].HasShear() {
		t.Fatal("expected shear value, got missing")
	}
	if *points[0].ShearMagnitudeKt != 20.0 {
		t.Errorf("expected nearest sample magnitude 20.0, got %f", *points[0].ShearMagnitudeKt)
	}
}

func TestEnvironment_BeyondToleranceIsMissing(t *testing.T) {
	// Nearest sample five hours away: beyond tolerance, row kept, values nil.
	samples := []domain.EnvironmentSample{
		mkSample(t0, 10.0, 200),
		mkSample(t0.Add(12*time.Hour), 20.0, 220),
	}
	bins := []domain.TimeBin{mkBin(t0.Add(5*time.Hour), 30*time.Minute)}

	points, err := Environment(samples, bins, 3*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected one output row, got %d", len(points))
	}
	if points[0].HasShear() {
		t.Errorf("expected missing value, got magnitude %f", *points[0].ShearMagnitudeKt)
	}
	if points[0].ShearDirectionDeg != nil {
		t.Errorf("expected missing direction, got %f", *points[0].ShearDirectionDeg)
	}
}

func TestEnvironment_ToleranceBoundaryInclusive(t *testing.T) {
	// A sample exactly tolerance away is still assigned.
	samples := []domain.EnvironmentSample{mkSample(t0, 15.0, 180)}
	bins := []domain.TimeBin{mkBin(t0.Add(3*time.Hour), 30*time.Minute)}

	points, err := Environment(samples, bins, 3*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !points[0].HasShear() {
		t.Fatal("expected value at exact tolerance boundary, got missing")
	}
	if *points[0].ShearMagnitudeKt != 15.0 {
		t.Errorf("expected magnitude 15.0, got %f", *points[0].ShearMagnitudeKt)
	}
}

func TestEnvironment_JustBeyondBoundaryMissing(t *testing.T) {
	samples := []domain.EnvironmentSample{mkSample(t0, 15.0, 180)}
	bins := []domain.TimeBin{mkBin(t0.Add(3*time.Hour+time.Second), 30*time.Minute)}

	points, err := Environment(samples, bins, 3*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if points[0].HasShear() {
		t.Error("expected missing value just beyond tolerance boundary")
	}
}

func TestEnvironment_EveryBinProducesARow(t *testing.T) {
	samples := []domain.EnvironmentSample{mkSample(t0.Add(6*time.Hour), 18.0, 210)}
	var bins []domain.TimeBin
	for mid := t0.Add(15 * time.Minute); mid.Before(t0.Add(24 * time.Hour)); mid = mid.Add(30 * time.Minute) {
		bins = append(bins, mkBin(mid, 30*time.Minute))
	}

	points, err := Environment(samples, bins, 3*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != len(bins) {
		t.Fatalf("expected %d rows, got %d", len(bins), len(points))
	}
	present := 0
	for i, p := range points {
		if !p.Timestamp.Equal(bins[i].Midpoint) {
			t.Errorf("row %d timestamp %v does not match bin midpoint %v", i, p.Timestamp, bins[i].Midpoint)
		}
		if p.HasShear() {
			present++
		}
	}
	if present == 0 || present == len(points) {
		t.Errorf("expected a mix of present and missing rows, got %d/%d present", present, len(points))
	}
}

func TestEnvironment_NoSamplesAllMissing(t *testing.T) {
	bins := []domain.TimeBin{
		mkBin(t0.Add(15*time.Minute), 30*time.Minute),
		mkBin(t0.Add(45*time.Minute), 30*time.Minute),
	}

	points, err := Environment(nil, bins, 3*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(points))
	}
	for i, p := range points {
		if p.HasShear() {
			t.Errorf("row %d: expected missing, got value", i)
		}
	}
}

func TestEnvironment_EmptyBins(t *testing.T) {
	samples := []domain.EnvironmentSample{mkSample(t0, 10.0, 200)}
	if _, err := Environment(samples, nil, 3*time.Hour); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEnvironment_NegativeTolerance(t *testing.T) {
	samples := []domain.EnvironmentSample{mkSample(t0, 10.0, 200)}
	bins := []domain.TimeBin{mkBin(t0, 30*time.Minute)}
	if _, err := Environment(samples, bins, -time.Hour); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEnvironment_UnsortedSamples(t *testing.T) {
	samples := []domain.EnvironmentSample{
		mkSample(t0.Add(6*time.Hour), 20.0, 220),
		mkSample(t0, 10.0, 200),
	}
	bins := []domain.TimeBin{mkBin(t0.Add(time.Hour), 30*time.Minute)}

	points, err := Environment(samples, bins, 3*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !points[0].HasShear() || *points[0].ShearMagnitudeKt != 10.0 {
		t.Errorf("expected nearest sample magnitude 10.0, got %+v", points[0])
	}
}
