package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"storm-align-lab/internal/discovery"
	"storm-align-lab/internal/domain"
)

// Best-track archive locations (public NHC datasets).
const (
	DefaultAtlanticBestTrackURL    = "https://www.nhc.noaa.gov/data/hurdat/hurdat2-1851-2024-040425.txt"
	DefaultEastPacificBestTrackURL = "https://www.nhc.noaa.gov/data/hurdat/hurdat2-nepac-1949-2024-031725.txt"
)

// BestTrackSource serves track fixes from the public best-track archives.
// Each basin's dataset is fetched and parsed once, on first use; per-storm
// reads afterwards hit the in-memory index. One archive covers decades of
// storms, so per-storm fetching would be pure waste.
type BestTrackSource struct {
	urls   map[domain.Basin]string
	client *http.Client
	parser *discovery.BestTrackParser
	logger *log.Logger

	mu     sync.Mutex
	basins map[domain.Basin]*basinTracks
}

type basinTracks struct {
	tracks []*discovery.StormTrack
	byCode map[string]*discovery.StormTrack
}

// BestTrackSourceOptions contains configuration for creating a BestTrackSource.
type BestTrackSourceOptions struct {
	// URLs maps basins to archive locations. Defaults to the public NHC
	// dataset URLs.
	URLs map[domain.Basin]string

	// HTTPClient used for archive fetches. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger for fetch progress. Defaults to the standard logger.
	Logger *log.Logger
}

// NewBestTrackSource creates a best-track archive source.
func NewBestTrackSource(opts BestTrackSourceOptions) *BestTrackSource {
	urls := opts.URLs
	if urls == nil {
		urls = map[domain.Basin]string{
			domain.BasinAtlantic:    DefaultAtlanticBestTrackURL,
			domain.BasinEastPacific: DefaultEastPacificBestTrackURL,
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

	return &BestTrackSource{
		urls:   urls,
		client: client,
		parser: discovery.NewBestTrackParser(),
		logger: logger,
		basins: make(map[domain.Basin]*basinTracks),
	}
}

// FetchTrackFixes returns the best-track fixes for one storm.
// Returns domain.ErrNotFound when the archive has no section for the code.
func (s *BestTrackSource) FetchTrackFixes(ctx context.Context, stormCode string) ([]domain.TrackFix, error) {
	basin, ok := domain.BasinFromCode(stormCode)
	if !ok {
		return nil, fmt.Errorf("%w: storm code %q has no recognized basin", domain.ErrInvalidInput, stormCode)
	}

	data, err := s.load(ctx, basin)
	if err != nil {
		return nil, err
	}

	track, ok := data.byCode[stormCode]
	if !ok {
		return nil, fmt.Errorf("%w: storm %s not in best-track archive", domain.ErrNotFound, stormCode)
	}

	fixes := make([]domain.TrackFix, len(track.Fixes))
	copy(fixes, track.Fixes)
	return fixes, nil
}

// StormTracks returns every parsed storm section for a basin, in file order.
func (s *BestTrackSource) StormTracks(ctx context.Context, basin domain.Basin) ([]*discovery.StormTrack, error) {
	data, err := s.load(ctx, basin)
	if err != nil {
		return nil, err
	}
	return data.tracks, nil
}

// load fetches and parses a basin's archive on first use.
func (s *BestTrackSource) load(ctx context.Context, basin domain.Basin) (*basinTracks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.basins[basin]; ok {
		return data, nil
	}

	archiveURL, ok := s.urls[basin]
	if !ok {
		return nil, fmt.Errorf("%w: no archive configured for basin %s", domain.ErrInvalidInput, basin)
	}

	s.logger.Printf("Fetching best-track archive for basin %s from %s", basin, archiveURL)

	body, err := fetchURL(ctx, s.client, archiveURL)
	if err != nil {
		return nil, fmt.Errorf("%w: best-track archive for basin %s: %v", domain.ErrSourceUnavailable, basin, err)
	}

	tracks, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse best-track archive for basin %s: %w", basin, err)
	}

	data := &basinTracks{
		tracks: tracks,
		byCode: make(map[string]*discovery.StormTrack, len(tracks)),
	}
	for _, track := range tracks {
		data.byCode[track.Code] = track
	}
	s.basins[basin] = data

	s.logger.Printf("Parsed %d storm tracks for basin %s", len(tracks), basin)
	return data, nil
}

// fetchURL performs a plain GET and returns the body.
func fetchURL(ctx context.Context, client *http.Client, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

var (
	_ TrackSource                  = (*BestTrackSource)(nil)
	_ discovery.TrackDatasetSource = (*BestTrackSource)(nil)
)
