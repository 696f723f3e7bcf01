package ingestion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storm-align-lab/internal/domain"
)

// Six diagnostic entries in the public archive format: one outside the
// test window, one with an unparseable shear value, one carrying the
// 9999 missing-data sentinel.
const sampleDiagnostics = `            DORIAN  950820  12   45  20.9  55.3 1002  AL041995     HEAD
   0    6   12   18  TIME
  45   50   55   60  VMAX
 120  115  110  105  SHRD
  95   95   90   90  SHTD
   0    0    0    0  LAST
            IAN     220926  12  100  23.2  83.2  960  AL092022     HEAD
   0    6   12   18  TIME
 100  105  110  115  VMAX
 102   98   95   90  SHRD
  85   88   90   95  SHTD
   0    0    0    0  LAST
            IAN     220926  18  115  24.2  82.9  947  AL092022     HEAD
   0    6   12   18  TIME
 115  120  125  125  VMAX
 N/A   95   90   85  SHRD
  90   92   95  100  SHTD
   0    0    0    0  LAST
            IAN     220927  00  120  25.0  82.2  945  AL092022     HEAD
   0    6   12   18  TIME
 120  125  130  130  VMAX
  95   90   85   80  SHRD
  95  100  105  110  SHTD
   0    0    0    0  LAST
            IAN     220927  06  125  25.8  82.1  941  AL092022     HEAD
   0    6   12   18  TIME
 125  130  135  135  VMAX
9999 9999 9999 9999  SHRD
9999 9999 9999 9999  SHTD
   0    0    0    0  LAST
            KARL    221011  12   45  19.8  92.6 1001  AL132022     HEAD
   0    6   12   18  TIME
  45   45   50   50  VMAX
 140  135  130  125  SHRD
 220  215  210  205  SHTD
   0    0    0    0  LAST
`

func year2022Window() TimeWindow {
	return TimeWindow{
		Start: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestDiagnosticsSource_FetchEnvironmentSamples(t *testing.T) {
	var fetches atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(sampleDiagnostics))
	}))
	defer server.Close()

	source := NewDiagnosticsSource(DiagnosticsSourceOptions{
		URLs:   map[domain.Basin]string{domain.BasinAtlantic: server.URL},
		Window: year2022Window(),
		Logger: quietIngestLogger(),
	})

	samples, err := source.FetchEnvironmentSamples(context.Background(), "AL092022")
	if err != nil {
		t.Fatalf("FetchEnvironmentSamples failed: %v", err)
	}

	// The 18Z entry's shear value is unparseable, so three of four IAN
	// entries survive.
	if len(samples) != 3 {
		t.Fatalf("expected 3 IAN samples, got %d", len(samples))
	}
	if !samples[0].Timestamp.Equal(time.Date(2022, 9, 26, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("wrong first sample timestamp: %v", samples[0].Timestamp)
	}
	if samples[0].ShearMagnitudeKt != 10.2 || samples[0].ShearDirectionDeg != 85 {
		t.Errorf("wrong first sample shear: %v kt at %v deg",
			samples[0].ShearMagnitudeKt, samples[0].ShearDirectionDeg)
	}
	if samples[1].ShearMagnitudeKt != 9.5 || samples[1].ShearDirectionDeg != 95 {
		t.Errorf("wrong second sample shear: %v kt at %v deg",
			samples[1].ShearMagnitudeKt, samples[1].ShearDirectionDeg)
	}
	// Missing-data sentinels pass through untouched.
	if samples[2].ShearMagnitudeKt != 999.9 || samples[2].ShearDirectionDeg != 9999 {
		t.Errorf("sentinel values must pass through, got %v kt at %v deg",
			samples[2].ShearMagnitudeKt, samples[2].ShearDirectionDeg)
	}

	karl, err := source.FetchEnvironmentSamples(context.Background(), "AL132022")
	if err != nil {
		t.Fatalf("FetchEnvironmentSamples for KARL failed: %v", err)
	}
	if len(karl) != 1 {
		t.Fatalf("expected 1 KARL sample, got %d", len(karl))
	}
	if karl[0].ShearMagnitudeKt != 14.0 || karl[0].ShearDirectionDeg != 220 {
		t.Errorf("wrong KARL shear: %v kt at %v deg",
			karl[0].ShearMagnitudeKt, karl[0].ShearDirectionDeg)
	}
	if fetches.Load() != 1 {
		t.Errorf("archive should be fetched once per basin, got %d fetches", fetches.Load())
	}
}

func TestDiagnosticsSource_FiltersEntriesOutsideWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleDiagnostics))
	}))
	defer server.Close()

	source := NewDiagnosticsSource(DiagnosticsSourceOptions{
		URLs:   map[domain.Basin]string{domain.BasinAtlantic: server.URL},
		Window: year2022Window(),
		Logger: quietIngestLogger(),
	})

	samples, err := source.FetchEnvironmentSamples(context.Background(), "AL041995")
	if err != nil {
		t.Fatalf("FetchEnvironmentSamples failed: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("1995 entry is outside the window, got %d samples", len(samples))
	}
}

func TestDiagnosticsSource_StormAbsentFromArchive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleDiagnostics))
	}))
	defer server.Close()

	source := NewDiagnosticsSource(DiagnosticsSourceOptions{
		URLs:   map[domain.Basin]string{domain.BasinAtlantic: server.URL},
		Window: year2022Window(),
		Logger: quietIngestLogger(),
	})

	// An absent storm means all-missing diagnostics, not a failure.
	samples, err := source.FetchEnvironmentSamples(context.Background(), "AL152022")
	if err != nil {
		t.Fatalf("FetchEnvironmentSamples failed: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples for absent storm, got %d", len(samples))
	}
}

func TestDiagnosticsSource_UnknownBasinCode(t *testing.T) {
	source := NewDiagnosticsSource(DiagnosticsSourceOptions{Logger: quietIngestLogger()})

	_, err := source.FetchEnvironmentSamples(context.Background(), "XX012022")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDiagnosticsSource_ArchiveUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewDiagnosticsSource(DiagnosticsSourceOptions{
		URLs:   map[domain.Basin]string{domain.BasinAtlantic: server.URL},
		Window: year2022Window(),
		Logger: quietIngestLogger(),
	})

	_, err := source.FetchEnvironmentSamples(context.Background(), "AL092022")
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}
