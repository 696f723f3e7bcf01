package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"storm-align-lab/internal/discovery"
	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/ingestion"
	"storm-align-lab/internal/observability"
	"storm-align-lab/internal/storage"
	"storm-align-lab/internal/storage/memory"
	"storm-align-lab/internal/storage/migrations"
	pgstore "storm-align-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	basinFlag := flag.String("basin", "AL", "Basin to ingest: AL or EP")
	minYear := flag.Int("min-year", 0, "First season to include (0 uses the census default)")
	maxYear := flag.Int("max-year", 0, "Last season to include (0 uses the census default)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	skipCensus := flag.Bool("skip-census", false, "Skip the storm census and ingest the stored population as-is")
	skipTracks := flag.Bool("skip-tracks", false, "Skip best-track fix ingestion")
	skipEnvironment := flag.Bool("skip-environment", false, "Skip environmental diagnostics ingestion")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	basin := domain.Basin(strings.ToUpper(*basinFlag))
	if !basin.IsValid() {
		logger.Fatalf("Unknown basin %q (supported: AL, EP)", *basinFlag)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

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

	err := runArchive(ctx, logger, *postgresDSN, basin, *minYear, *maxYear,
		*skipCensus, *skipTracks, *skipEnvironment, *useMemory)

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// runArchive ingests the archive datasets: storm census, best-track fixes,
// and environmental diagnostics.
func runArchive(ctx context.Context, logger *log.Logger, postgresDSN string, basin domain.Basin, minYear, maxYear int, skipCensus, skipTracks, skipEnvironment, useMemory bool) error {
	// Require --postgres-dsn unless --use-memory is explicitly set
	if !useMemory && postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create stores (use interfaces)
	var stormStore storage.StormStore = memory.NewStormStore()
	var fixStore storage.TrackFixStore = memory.NewTrackFixStore()
	var sampleStore storage.EnvironmentSampleStore = memory.NewEnvironmentSampleStore()
	var progressStore storage.IngestProgressStore = memory.NewIngestProgressStore()

	if !useMemory {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}

		stormStore = pgstore.NewStormStore(pool)
		fixStore = pgstore.NewTrackFixStore(pool)
		sampleStore = pgstore.NewEnvironmentSampleStore(pool)
		progressStore = pgstore.NewIngestProgressStore(pool)
	}

	// Create archive sources
	bestTrack := ingestion.NewBestTrackSource(ingestion.BestTrackSourceOptions{Logger: logger})
	diagnostics := ingestion.NewDiagnosticsSource(ingestion.DiagnosticsSourceOptions{Logger: logger})

	var census *discovery.Census
	if !skipCensus {
		var err error
		census, err = discovery.NewCensus(discovery.CensusOptions{
			Source:  bestTrack,
			Storms:  stormStore,
			MinYear: minYear,
			MaxYear: maxYear,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("create census: %w", err)
		}
		census.WithProgressStore(progressStore)
		if err := census.LoadState(ctx); err != nil {
			return fmt.Errorf("load census state: %w", err)
		}
	}

	var tracks ingestion.TrackSource
	if !skipTracks {
		tracks = bestTrack
	}
	var environment ingestion.EnvironmentSource
	if !skipEnvironment {
		environment = diagnostics
	}

	// Create and run runner
	runner, err := ingestion.NewRunner(ingestion.RunnerOptions{
		Census:      census,
		Tracks:      tracks,
		Environment: environment,
		Storms:      stormStore,
		Fixes:       fixStore,
		Samples:     sampleStore,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	logger.Printf("Starting archive ingest for basin %s...", basin)
	result, err := runner.Run(ctx, basin)
	if err != nil {
		return err
	}

	logger.Printf("Ingest complete: %d storms discovered, %d processed, %d fixes, %d samples, %d duplicates skipped, %d errors in %v",
		result.StormsDiscovered, result.StormsProcessed,
		result.FixesIngested, result.SamplesIngested,
		result.DuplicatesSkipped, result.Errors, result.Duration)

	return nil
}
