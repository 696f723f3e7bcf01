package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"storm-align-lab/internal/discovery"
	"storm-align-lab/internal/domain"
)

// Environmental diagnostics archive locations (public RAMMB datasets).
const (
	DefaultAtlanticDiagnosticsURL    = "https://rammb-data.cira.colostate.edu/ships/data/AL/lsdiaga_1982_2023_sat_ts_7day.txt"
	DefaultEastPacificDiagnosticsURL = "https://rammb-data.cira.colostate.edu/ships/data/EP/lsdiage_1982_2023_sat_ts_7day.txt"
)

// Diagnostics file section layout. Each forecast entry is a block of lines
// whose trailing token names the variable; HEAD opens a block and LAST
// closes it. The header carries exactly nine whitespace-separated fields:
// name, yymmdd, hh, max wind, lat, lon, pressure, storm code, "HEAD".
const (
	diagHeaderFields = 9
	diagTimeLayout   = "06010215" // yymmdd + hh
)

// DiagnosticsSource serves environment samples from the public SHIPS
// diagnostics archives. Like the best-track source, each basin's file is
// fetched and scanned once; the archives interleave every storm of four
// decades into one file.
type DiagnosticsSource struct {
	urls   map[domain.Basin]string
	client *http.Client
	window TimeWindow
	logger *log.Logger

	mu     sync.Mutex
	basins map[domain.Basin]map[string][]domain.EnvironmentSample
}

// DiagnosticsSourceOptions contains configuration for creating a DiagnosticsSource.
type DiagnosticsSourceOptions struct {
	// URLs maps basins to archive locations. Defaults to the public RAMMB
	// dataset URLs.
	URLs map[domain.Basin]string

	// Window bounds the entries kept while scanning. Defaults to the
	// census year window.
	Window TimeWindow

	// HTTPClient used for archive fetches. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger for fetch progress. Defaults to the standard logger.
	Logger *log.Logger
}

// NewDiagnosticsSource creates a diagnostics archive source.
func NewDiagnosticsSource(opts DiagnosticsSourceOptions) *DiagnosticsSource {
	urls := opts.URLs
	if urls == nil {
		urls = map[domain.Basin]string{
			domain.BasinAtlantic:    DefaultAtlanticDiagnosticsURL,
			domain.BasinEastPacific: DefaultEastPacificDiagnosticsURL,
		}
	}

	window := opts.Window
	if window.Start.IsZero() && window.End.IsZero() {
		window = TimeWindow{
			Start: time.Date(discovery.DefaultMinYear, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(discovery.DefaultMaxYear+1, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &DiagnosticsSource{
		urls:   urls,
		client: client,
		window: window,
		logger: logger,
		basins: make(map[domain.Basin]map[string][]domain.EnvironmentSample),
	}
}

// FetchEnvironmentSamples returns the diagnostic samples for one storm.
// A storm absent from the archive yields an empty slice, not an error:
// alignment treats it as all-missing, which is the honest answer.
func (s *DiagnosticsSource) FetchEnvironmentSamples(ctx context.Context, stormCode string) ([]domain.EnvironmentSample, error) {
	basin, ok := domain.BasinFromCode(stormCode)
	if !ok {
		return nil, fmt.Errorf("%w: storm code %q has no recognized basin", domain.ErrInvalidInput, stormCode)
	}

	byCode, err := s.load(ctx, basin)
	if err != nil {
		return nil, err
	}

	samples := byCode[stormCode]
	out := make([]domain.EnvironmentSample, len(samples))
	copy(out, samples)
	return out, nil
}

// load fetches and scans a basin's archive on first use.
func (s *DiagnosticsSource) load(ctx context.Context, basin domain.Basin) (map[string][]domain.EnvironmentSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byCode, ok := s.basins[basin]; ok {
		return byCode, nil
	}

	archiveURL, ok := s.urls[basin]
	if !ok {
		return nil, fmt.Errorf("%w: no diagnostics archive configured for basin %s", domain.ErrInvalidInput, basin)
	}

	s.logger.Printf("Fetching diagnostics archive for basin %s from %s", basin, archiveURL)

	body, err := fetchURL(ctx, s.client, archiveURL)
	if err != nil {
		return nil, fmt.Errorf("%w: diagnostics archive for basin %s: %v", domain.ErrSourceUnavailable, basin, err)
	}

	byCode, err := parseDiagnostics(bytes.NewReader(body), s.window)
	if err != nil {
		return nil, fmt.Errorf("parse diagnostics archive for basin %s: %w", basin, err)
	}
	s.basins[basin] = byCode

	s.logger.Printf("Scanned diagnostics for %d storms in basin %s", len(byCode), basin)
	return byCode, nil
}

// parseDiagnostics scans an archive for shear entries, grouped by storm
// code. Per entry it walks HEAD, SHRD (shear magnitude, stored as tenths
// of a knot), SHTD (shear heading in degrees), then LAST. Entries with a
// malformed header, timestamp, or value are skipped whole; entries outside
// the window are skipped before their variable lines are touched.
func parseDiagnostics(r io.Reader, window TimeWindow) (map[string][]domain.EnvironmentSample, error) {
	samples := make(map[string][]domain.EnvironmentSample)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		header, ok := scanToCode(sc, "HEAD")
		if !ok {
			break
		}
		if len(header) != diagHeaderFields {
			continue
		}

		ts, err := time.Parse(diagTimeLayout, header[1]+header[2])
		if err != nil {
			continue
		}
		if !window.Contains(ts) {
			continue
		}

		shrd, ok := scanToCode(sc, "SHRD")
		if !ok {
			continue
		}
		magRaw, err := strconv.ParseFloat(shrd[0], 64)
		if err != nil {
			continue
		}

		shtd, ok := scanToCode(sc, "SHTD")
		if !ok {
			continue
		}
		dir, err := strconv.ParseFloat(shtd[0], 64)
		if err != nil {
			continue
		}

		// Position at the section boundary before the next entry
		scanToCode(sc, "LAST")

		code := header[7]
		samples[code] = append(samples[code], domain.EnvironmentSample{
			Timestamp:         ts,
			ShearMagnitudeKt:  magRaw / 10,
			ShearDirectionDeg: dir,
		})
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan diagnostics: %w", err)
	}
	return samples, nil
}

// scanToCode advances to the next line whose trailing token equals code
// and returns that line's fields.
func scanToCode(sc *bufio.Scanner, code string) ([]string, bool) {
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[len(fields)-1] == code {
			return fields, true
		}
	}
	return nil, false
}

var _ EnvironmentSource = (*DiagnosticsSource)(nil)
