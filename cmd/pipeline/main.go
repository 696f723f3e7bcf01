// Package main provides the batch alignment entry point.
// Executes: population selection → per-storm stage machine → artifacts/export.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"storm-align-lab/internal/discovery"
	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/export"
	"storm-align-lab/internal/gcs"
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

func main() {
	// Parse flags
	basinFlag := flag.String("basin", "AL", "Basin to align: AL or EP (empty selects by season range only)")
	minYear := flag.Int("min-year", 0, "First season to include")
	maxYear := flag.Int("max-year", 0, "Last season to include")
	interval := flag.Duration("interval", pipeline.DefaultInterval, "Bin width")
	tolerance := flag.Duration("tolerance", pipeline.DefaultTolerance, "Environment join tolerance")
	rmwMultiplier := flag.Float64("rmw-multiplier", spatial.DefaultRMWMultiplier, "Radius cutoff as a multiple of the radius of maximum winds")
	workers := flag.Int("workers", spatial.DefaultWorkers, "Concurrent observation batch fetches")
	batchTimeout := flag.Duration("batch-timeout", spatial.DefaultBatchTimeout, "Per-batch fetch deadline")
	outputDir := flag.String("output-dir", "artifacts", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	kafkaBrokers := flag.String("kafka-brokers", "", "Comma-separated Kafka brokers (empty disables publishing)")
	kafkaTopic := flag.String("kafka-topic", export.DefaultTopic, "Kafka completion event topic")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	useFixtures := flag.Bool("use-fixtures", false, "Run against built-in fixture data (implies --use-memory)")
	discover := flag.Bool("discover", false, "Run a storm census against the best-track archive before aligning")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags)

	basin := domain.Basin(strings.ToUpper(*basinFlag))
	if *basinFlag != "" && !basin.IsValid() {
		logger.Fatalf("Unknown basin %q (supported: AL, EP)", *basinFlag)
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go serveMetrics(logger, *metricsAddr)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
		cancel()
	}()

	// Assemble storage
	stores, err := buildStores(ctx, logger, *useMemory || *useFixtures, *postgresDSN, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("Storage setup: %v", err)
	}
	defer stores.close()

	// Assemble sources
	var (
		tracks       ingestion.TrackSource
		environment  ingestion.EnvironmentSource
		observations ingestion.ObservationSource
	)
	if *useFixtures {
		tracks, environment, observations = pipeline.FixtureSources()
		if err := pipeline.LoadFixtures(ctx, stores.storms, stores.fixes, stores.samples); err != nil {
			logger.Fatalf("Load fixtures: %v", err)
		}
		logger.Println("Running against built-in fixture data")
	} else {
		bestTrack := ingestion.NewBestTrackSource(ingestion.BestTrackSourceOptions{Logger: logger})
		tracks = bestTrack
		environment = ingestion.NewDiagnosticsSource(ingestion.DiagnosticsSourceOptions{Logger: logger})

		lightning, err := ingestion.NewLightningSource(ingestion.LightningSourceOptions{
			Client: gcs.NewClient(),
			Logger: logger,
		})
		if err != nil {
			logger.Fatalf("Lightning source: %v", err)
		}
		observations = lightning

		if *discover {
			if !basin.IsValid() {
				logger.Fatal("--discover requires --basin")
			}
			if err := runCensus(ctx, logger, bestTrack, stores, basin, *minYear, *maxYear); err != nil {
				logger.Fatalf("Storm census: %v", err)
			}
		}
	}

	// Assemble the per-storm stage machine
	cache := ingestion.NewBatchCache()
	aggregator, err := spatial.NewAggregator(spatial.Options{
		Source:        observations,
		Cache:         cache,
		Workers:       *workers,
		BatchTimeout:  *batchTimeout,
		RMWMultiplier: *rmwMultiplier,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatalf("Aggregator setup: %v", err)
	}

	writer, err := reporting.NewWriter(reporting.WriterOptions{OutputDir: *outputDir, Logger: logger})
	if err != nil {
		logger.Fatalf("Artifact writer setup: %v", err)
	}

	runner, err := pipeline.NewStormRunner(pipeline.StormRunnerOptions{
		Tracks:       tracks,
		Environment:  environment,
		Aggregator:   aggregator,
		TrackPoints:  stores.trackPoints,
		EnvPoints:    stores.envPoints,
		Observations: stores.observations,
		Artifacts:    writer,
		Interval:     *interval,
		Tolerance:    *tolerance,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatalf("Runner setup: %v", err)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Storms:  stores.storms,
		Runner:  runner,
		Results: stores.results,
		Cache:   cache,
		Basin:   basin,
		MinYear: *minYear,
		MaxYear: *maxYear,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("Orchestrator setup: %v", err)
	}

	// Run
	fmt.Println("=== Storm Alignment ===")
	batch, runErr := orch.Run(ctx)
	if batch == nil {
		logger.Fatalf("Run failed: %v", runErr)
	}

	printResults(batch)

	if _, err := writer.WriteBatchSummary(batch); err != nil {
		logger.Printf("Warning: write run summary: %v", err)
	}

	publisher := export.NewPublisher(export.PublisherOptions{
		Brokers: splitBrokers(*kafkaBrokers),
		Topic:   *kafkaTopic,
		Logger:  logger,
	})
	defer publisher.Close()
	if publisher.Enabled() {
		if err := publisher.PublishBatch(ctx, batch); err != nil {
			logger.Printf("Warning: publish completion events: %v", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Fatalf("Run failed: %v", runErr)
	}
	fmt.Printf("\nArtifacts written under %s/\n", *outputDir)
}

// backends bundles the storage implementations behind one run.
type backends struct {
	storms       storage.StormStore
	fixes        storage.TrackFixStore
	samples      storage.EnvironmentSampleStore
	progress     storage.IngestProgressStore
	trackPoints  storage.TrackPointStore
	envPoints    storage.EnvironmentPointStore
	observations storage.ObservationStore
	results      storage.ResultStore
	close        func()
}

// buildStores assembles memory or database-backed storage. Database mode
// requires both DSNs and applies embedded migrations before returning.
func buildStores(ctx context.Context, logger *log.Logger, useMemory bool, postgresDSN, clickhouseDSN string) (*backends, error) {
	if useMemory {
		return &backends{
			storms:       memory.NewStormStore(),
			fixes:        memory.NewTrackFixStore(),
			samples:      memory.NewEnvironmentSampleStore(),
			progress:     memory.NewIngestProgressStore(),
			trackPoints:  memory.NewTrackPointStore(),
			envPoints:    memory.NewEnvironmentPointStore(),
			observations: memory.NewObservationStore(),
			results:      memory.NewResultStore(),
			close:        func() {},
		}, nil
	}

	if postgresDSN == "" {
		return nil, fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if clickhouseDSN == "" {
		return nil, fmt.Errorf("--clickhouse-dsn is required (use --use-memory for in-memory storage)")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	logger.Println("Connected to PostgreSQL and ClickHouse")
	return &backends{
		storms:       pgstore.NewStormStore(pool),
		fixes:        pgstore.NewTrackFixStore(pool),
		samples:      pgstore.NewEnvironmentSampleStore(pool),
		progress:     pgstore.NewIngestProgressStore(pool),
		trackPoints:  pgstore.NewTrackPointStore(pool),
		envPoints:    pgstore.NewEnvironmentPointStore(pool),
		observations: chstore.NewObservationStore(conn),
		results:      pgstore.NewResultStore(pool),
		close: func() {
			conn.Close()
			pool.Close()
		},
	}, nil
}

// runCensus refreshes the storm population index from the best-track archive.
func runCensus(ctx context.Context, logger *log.Logger, source discovery.TrackDatasetSource, stores *backends, basin domain.Basin, minYear, maxYear int) error {
	census, err := discovery.NewCensus(discovery.CensusOptions{
		Source:  source,
		Storms:  stores.storms,
		MinYear: minYear,
		MaxYear: maxYear,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	census.WithProgressStore(stores.progress)
	if err := census.LoadState(ctx); err != nil {
		return err
	}

	discovered, err := census.Run(ctx, basin)
	if err != nil {
		return err
	}
	logger.Printf("Census discovered %d storms in basin %s", len(discovered), basin)
	return nil
}

// printResults writes the per-storm outcome table to stdout.
func printResults(batch *domain.BatchResult) {
	codes := make([]string, 0, len(batch.Results))
	for code := range batch.Results {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	fmt.Printf("\nRun %s: %d/%d storms aligned\n", batch.RunID, batch.Completed(), len(batch.Results))
	for _, code := range codes {
		r := batch.Results[code]
		if r.Status == domain.StatusComplete {
			fmt.Printf("  %s %-10s %s (artifacts: %s)\n", r.StormCode, r.StormName, r.Status, r.ArtifactDir)
		} else {
			fmt.Printf("  %s %-10s %s at %s: %s\n", r.StormCode, r.StormName, r.Status, r.FailedStage, r.Error)
		}
	}
}

func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Printf("Starting metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}

func splitBrokers(s string) []string {
	if s == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
