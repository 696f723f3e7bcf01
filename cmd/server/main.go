// Package main provides the unified follow service that runs all components together:
// - Feed (continuous): live lightning group detections buffered in memory
// - Ingest (scheduled): storm census + best-track/diagnostics refresh
// - Alignment (scheduled): per-storm binning → stores, artifacts, summaries
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"storm-align-lab/internal/discovery"
	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/feed"
	"storm-align-lab/internal/ingestion"
	"storm-align-lab/internal/observability"
	"storm-align-lab/internal/orchestrator"
	"storm-align-lab/internal/pipeline"
	"storm-align-lab/internal/reporting"
	"storm-align-lab/internal/spatial"
	"storm-align-lab/internal/storage"
	chstore "storm-align-lab/internal/storage/clickhouse"
	"storm-align-lab/internal/storage/memory"
	"storm-align-lab/internal/storage/migrations"
	pgstore "storm-align-lab/internal/storage/postgres"
)

// Server holds all components of the follow service.
type Server struct {
	// Configuration
	feedEndpoint   string
	platform       string
	basin          domain.Basin
	minYear        int
	maxYear        int
	outputDir      string
	interval       time.Duration
	tolerance      time.Duration
	rmwMultiplier  float64
	workers        int
	batchTimeout   time.Duration
	bufferHorizon  time.Duration
	ingestInterval time.Duration
	alignInterval  time.Duration

	// Stores
	stores *allStores

	// Components
	stream *ingestion.StreamSource
	logger *log.Logger

	// State
	mu            sync.Mutex
	feedStarted   time.Time
	lastIngestRun time.Time
	lastAlignRun  time.Time
	ingestRunning bool
	alignRunning  bool

	// Stats
	ingestRuns int
	alignRuns  int
}

// allStores holds all storage implementations.
type allStores struct {
	stormStore       storage.StormStore
	fixStore         storage.TrackFixStore
	sampleStore      storage.EnvironmentSampleStore
	progressStore    storage.IngestProgressStore
	trackPointStore  storage.TrackPointStore
	envPointStore    storage.EnvironmentPointStore
	observationStore storage.ObservationStore
	resultStore      storage.ResultStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	feedEndpoint := flag.String("feed-endpoint", os.Getenv("FEED_ENDPOINT"), "Detection feed WebSocket endpoint")
	platform := flag.String("platform", "", "Satellite platform filter, e.g. G16 (empty subscribes to all)")
	basinFlag := flag.String("basin", "AL", "Basin to follow: AL or EP")
	minYear := flag.Int("min-year", 0, "First season to include (0 uses the current year)")
	maxYear := flag.Int("max-year", 0, "Last season to include (0 uses the current year)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	outputDir := flag.String("output-dir", "artifacts", "Output directory for generated files")
	interval := flag.Duration("interval", pipeline.DefaultInterval, "Bin width")
	tolerance := flag.Duration("tolerance", pipeline.DefaultTolerance, "Environment join tolerance")
	rmwMultiplier := flag.Float64("rmw-multiplier", spatial.DefaultRMWMultiplier, "Radius cutoff as a multiple of the radius of maximum winds")
	workers := flag.Int("workers", spatial.DefaultWorkers, "Concurrent observation batch fetches")
	batchTimeout := flag.Duration("batch-timeout", spatial.DefaultBatchTimeout, "Per-batch fetch deadline")
	bufferHorizon := flag.Duration("buffer-horizon", ingestion.DefaultBufferHorizon, "Feed buffer retention")
	ingestInterval := flag.Duration("ingest-interval", 6*time.Hour, "Census and series refresh interval")
	alignInterval := flag.Duration("align-interval", 30*time.Minute, "Alignment run interval")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *feedEndpoint == "" {
		logger.Fatal("--feed-endpoint is required")
	}
	basin := domain.Basin(strings.ToUpper(*basinFlag))
	if !basin.IsValid() {
		logger.Fatalf("Unknown basin %q (supported: AL, EP)", *basinFlag)
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// A follow service tracks the season in progress unless told otherwise.
	year := time.Now().UTC().Year()
	if *minYear == 0 {
		*minYear = year
	}
	if *maxYear == 0 {
		*maxYear = year
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Create server
	server := &Server{
		feedEndpoint:   *feedEndpoint,
		platform:       *platform,
		basin:          basin,
		minYear:        *minYear,
		maxYear:        *maxYear,
		outputDir:      *outputDir,
		interval:       *interval,
		tolerance:      *tolerance,
		rmwMultiplier:  *rmwMultiplier,
		workers:        *workers,
		batchTimeout:   *batchTimeout,
		bufferHorizon:  *bufferHorizon,
		ingestInterval: *ingestInterval,
		alignInterval:  *alignInterval,
		stores:         stores,
		logger:         logger,
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*metricsAddr)

	// Run the follow service
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			stormStore:       memory.NewStormStore(),
			fixStore:         memory.NewTrackFixStore(),
			sampleStore:      memory.NewEnvironmentSampleStore(),
			progressStore:    memory.NewIngestProgressStore(),
			trackPointStore:  memory.NewTrackPointStore(),
			envPointStore:    memory.NewEnvironmentPointStore(),
			observationStore: memory.NewObservationStore(),
			resultStore:      memory.NewResultStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (population, series, run audit)
		stormStore:      pgstore.NewStormStore(pool),
		fixStore:        pgstore.NewTrackFixStore(pool),
		sampleStore:     pgstore.NewEnvironmentSampleStore(pool),
		progressStore:   pgstore.NewIngestProgressStore(pool),
		trackPointStore: pgstore.NewTrackPointStore(pool),
		envPointStore:   pgstore.NewEnvironmentPointStore(pool),
		resultStore:     pgstore.NewResultStore(pool),

		// ClickHouse stores (aligned observation rows)
		observationStore: chstore.NewObservationStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run starts the follow service with all components.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting follow service...")

	// Create error channel for goroutines
	errCh := make(chan error, 3)

	// Start feed subscription in background
	go func() {
		err := s.runFeed(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("feed: %w", err)
		}
	}()

	// Start ingest scheduler in background
	go func() {
		err := s.runIngestScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("ingest scheduler: %w", err)
		}
	}()

	// Start alignment scheduler in background
	go func() {
		err := s.runAlignScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("alignment scheduler: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runFeed subscribes to the live detection feed and keeps the stream buffer
// filled until shutdown.
func (s *Server) runFeed(ctx context.Context) error {
	s.logger.Printf("Connecting to detection feed %s...", s.feedEndpoint)

	client, err := feed.NewClient(ctx, s.feedEndpoint, nil)
	if err != nil {
		return fmt.Errorf("connect to feed: %w", err)
	}
	defer client.Close()

	stream, err := ingestion.NewStreamSource(ctx, ingestion.StreamSourceOptions{
		Feed:    client,
		Filter:  feed.Filter{Platform: s.platform},
		Horizon: s.bufferHorizon,
		Logger:  log.New(os.Stdout, "[feed] ", log.LstdFlags|log.Lshortfile),
	})
	if err != nil {
		return fmt.Errorf("subscribe to feed: %w", err)
	}
	defer stream.Close()

	s.mu.Lock()
	s.stream = stream
	s.feedStarted = time.Now()
	s.mu.Unlock()

	s.logger.Println("Feed subscription established")
	<-ctx.Done()
	return ctx.Err()
}

// runIngestScheduler refreshes the storm population and series on schedule.
func (s *Server) runIngestScheduler(ctx context.Context) error {
	s.logger.Printf("Starting ingest scheduler (interval: %v)...", s.ingestInterval)

	// Run immediately on start
	s.runIngest(ctx)

	ticker := time.NewTicker(s.ingestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runIngest(ctx)
		}
	}
}

// runIngest executes one census and series refresh pass.
func (s *Server) runIngest(ctx context.Context) {
	s.mu.Lock()
	if s.ingestRunning {
		s.mu.Unlock()
		s.logger.Println("Ingest already running, skipping...")
		return
	}
	s.ingestRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.ingestRunning = false
		s.lastIngestRun = time.Now()
		s.ingestRuns++
		s.mu.Unlock()
	}()

	s.logger.Println("Running ingest...")

	bestTrack := ingestion.NewBestTrackSource(ingestion.BestTrackSourceOptions{Logger: s.logger})
	diagnostics := ingestion.NewDiagnosticsSource(ingestion.DiagnosticsSourceOptions{Logger: s.logger})

	census, err := discovery.NewCensus(discovery.CensusOptions{
		Source:  bestTrack,
		Storms:  s.stores.stormStore,
		MinYear: s.minYear,
		MaxYear: s.maxYear,
		Logger:  s.logger,
	})
	if err != nil {
		s.logger.Printf("Ingest error: %v", err)
		return
	}
	census.WithProgressStore(s.stores.progressStore)
	if err := census.LoadState(ctx); err != nil {
		s.logger.Printf("Ingest error: %v", err)
		return
	}

	runner, err := ingestion.NewRunner(ingestion.RunnerOptions{
		Census:      census,
		Tracks:      bestTrack,
		Environment: diagnostics,
		Storms:      s.stores.stormStore,
		Fixes:       s.stores.fixStore,
		Samples:     s.stores.sampleStore,
		Logger:      s.logger,
	})
	if err != nil {
		s.logger.Printf("Ingest error: %v", err)
		return
	}

	result, err := runner.Run(ctx, s.basin)
	if err != nil {
		s.logger.Printf("Ingest error: %v", err)
		return
	}

	s.logger.Printf("Ingest completed in %v: %d storms discovered, %d processed, %d fixes, %d samples",
		result.Duration, result.StormsDiscovered, result.StormsProcessed,
		result.FixesIngested, result.SamplesIngested)
}

// runAlignScheduler runs alignment on schedule.
func (s *Server) runAlignScheduler(ctx context.Context) error {
	s.logger.Printf("Starting alignment scheduler (interval: %v)...", s.alignInterval)

	// Wait for the first ingest pass before aligning
	time.Sleep(1 * time.Minute)

	// Run immediately after first ingest
	s.runAlign(ctx)

	ticker := time.NewTicker(s.alignInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runAlign(ctx)
		}
	}
}

// runAlign executes one alignment pass over the followed population, joining
// stored track and environment series against the live stream buffer.
func (s *Server) runAlign(ctx context.Context) {
	s.mu.Lock()
	if s.alignRunning {
		s.mu.Unlock()
		s.logger.Println("Alignment already running, skipping...")
		return
	}
	// Wait for ingest to finish
	if s.ingestRunning {
		s.mu.Unlock()
		s.logger.Println("Ingest running, waiting before alignment...")
		time.Sleep(30 * time.Second)
		s.mu.Lock()
	}
	stream := s.stream
	s.alignRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.alignRunning = false
		s.lastAlignRun = time.Now()
		s.alignRuns++
		s.mu.Unlock()
	}()

	if stream == nil {
		s.logger.Println("Feed buffer not ready, skipping alignment...")
		return
	}

	s.logger.Println("Running alignment...")
	start := time.Now()

	cache := ingestion.NewBatchCache()
	aggregator, err := spatial.NewAggregator(spatial.Options{
		Source:        stream,
		Cache:         cache,
		Workers:       s.workers,
		BatchTimeout:  s.batchTimeout,
		RMWMultiplier: s.rmwMultiplier,
		Logger:        s.logger,
	})
	if err != nil {
		s.logger.Printf("Alignment error: %v", err)
		return
	}

	writer, err := reporting.NewWriter(reporting.WriterOptions{OutputDir: s.outputDir, Logger: s.logger})
	if err != nil {
		s.logger.Printf("Alignment error: %v", err)
		return
	}

	runner, err := pipeline.NewStormRunner(pipeline.StormRunnerOptions{
		Tracks:       ingestion.NewStoreTrackSource(s.stores.fixStore),
		Environment:  ingestion.NewStoreEnvironmentSource(s.stores.sampleStore),
		Aggregator:   aggregator,
		TrackPoints:  s.stores.trackPointStore,
		EnvPoints:    s.stores.envPointStore,
		Observations: s.stores.observationStore,
		Artifacts:    writer,
		Interval:     s.interval,
		Tolerance:    s.tolerance,
		Logger:       s.logger,
	})
	if err != nil {
		s.logger.Printf("Alignment error: %v", err)
		return
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Storms:  s.stores.stormStore,
		Runner:  runner,
		Results: s.stores.resultStore,
		Cache:   cache,
		Basin:   s.basin,
		MinYear: s.minYear,
		MaxYear: s.maxYear,
		Logger:  s.logger,
	})
	if err != nil {
		s.logger.Printf("Alignment error: %v", err)
		return
	}

	batch, err := orch.Run(ctx)
	if err != nil {
		s.logger.Printf("Alignment error: %v", err)
	}
	if batch == nil {
		return
	}

	s.logger.Printf("Alignment completed in %v: %d/%d storms aligned",
		time.Since(start), batch.Completed(), len(batch.Results))

	if _, err := writer.WriteBatchSummary(batch); err != nil {
		s.logger.Printf("Write run summary: %v", err)
	}
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
	mux.HandleFunc("/health", health)
	mux.HandleFunc("/healthz", health)

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	FeedStarted   time.Time `json:"feed_started"`
	LastIngestRun time.Time `json:"last_ingest_run,omitempty"`
	LastAlignRun  time.Time `json:"last_align_run,omitempty"`
	IngestRuns    int       `json:"ingest_runs"`
	AlignRuns     int       `json:"align_runs"`
	IngestRunning bool      `json:"ingest_running"`
	AlignRunning  bool      `json:"align_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.feedStarted).String(),
		FeedStarted:   s.feedStarted,
		LastIngestRun: s.lastIngestRun,
		LastAlignRun:  s.lastAlignRun,
		IngestRuns:    s.ingestRuns,
		AlignRuns:     s.alignRuns,
		IngestRunning: s.ingestRunning,
		AlignRunning:  s.alignRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
