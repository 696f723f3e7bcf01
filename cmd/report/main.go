// Package main regenerates alignment artifacts from storage.
// Re-runs the binning for already-ingested storms against stored series and
// persisted observation rows; the archives and the live feed are never touched.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/ingestion"
	"storm-align-lab/internal/pipeline"
	"storm-align-lab/internal/reporting"
	"storm-align-lab/internal/spatial"
	"storm-align-lab/internal/storage"
	chstore "storm-align-lab/internal/storage/clickhouse"
	"storm-align-lab/internal/storage/memory"
	pgstore "storm-align-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	stormCode := flag.String("storm", "", "Single storm to regenerate (ATCF code, e.g. AL092022)")
	basinFlag := flag.String("basin", "", "Regenerate every stored storm in a basin: AL or EP")
	minYear := flag.Int("min-year", 0, "First season to include")
	maxYear := flag.Int("max-year", 0, "Last season to include")
	interval := flag.Duration("interval", pipeline.DefaultInterval, "Bin width")
	tolerance := flag.Duration("tolerance", pipeline.DefaultTolerance, "Environment join tolerance")
	rmwMultiplier := flag.Float64("rmw-multiplier", spatial.DefaultRMWMultiplier, "Radius cutoff as a multiple of the radius of maximum winds")
	workers := flag.Int("workers", spatial.DefaultWorkers, "Concurrent observation batch fetches")
	batchTimeout := flag.Duration("batch-timeout", spatial.DefaultBatchTimeout, "Per-batch fetch deadline")
	outputDir := flag.String("output-dir", "artifacts", "Output directory for regenerated files")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	flag.Parse()

	logger := log.New(os.Stdout, "[report] ", log.LstdFlags)

	basin := domain.Basin(strings.ToUpper(*basinFlag))
	if *basinFlag != "" && !basin.IsValid() {
		logger.Fatalf("Unknown basin %q (supported: AL, EP)", *basinFlag)
	}
	if *stormCode == "" && *basinFlag == "" && *minYear == 0 {
		logger.Fatal("Select storms with --storm, --basin, or a season range")
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}
	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required")
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling regeneration...", sig)
		cancel()
	}()

	// Connect to storage. Regeneration reads existing tables only, so no
	// migrations are applied here.
	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("Connect to clickhouse: %v", err)
	}
	defer conn.Close()

	stormStore := pgstore.NewStormStore(pool)
	fixStore := pgstore.NewTrackFixStore(pool)
	sampleStore := pgstore.NewEnvironmentSampleStore(pool)
	observationStore := chstore.NewObservationStore(conn)

	storms, err := selectStorms(ctx, stormStore, *stormCode, basin, *minYear, *maxYear)
	if err != nil {
		logger.Fatalf("Select storms: %v", err)
	}
	if len(storms) == 0 {
		logger.Fatal("No stored storms match the selection")
	}

	writer, err := reporting.NewWriter(reporting.WriterOptions{OutputDir: *outputDir, Logger: logger})
	if err != nil {
		logger.Fatalf("Artifact writer setup: %v", err)
	}

	fmt.Println("=== Artifact Regeneration ===")
	batch := &domain.BatchResult{
		RunID:     uuid.NewString(),
		Results:   make(map[string]*domain.StormResult),
		StartedAt: time.Now().UTC(),
	}

	for _, storm := range storms {
		if ctx.Err() != nil {
			break
		}

		cache := ingestion.NewBatchCache()
		aggregator, err := spatial.NewAggregator(spatial.Options{
			Source:        ingestion.NewStoreObservationSource(observationStore, storm.Code),
			Cache:         cache,
			Workers:       *workers,
			BatchTimeout:  *batchTimeout,
			RMWMultiplier: *rmwMultiplier,
			Logger:        logger,
		})
		if err != nil {
			logger.Fatalf("Aggregator setup: %v", err)
		}

		runner, err := pipeline.NewStormRunner(pipeline.StormRunnerOptions{
			Tracks:      ingestion.NewStoreTrackSource(fixStore),
			Environment: ingestion.NewStoreEnvironmentSource(sampleStore),
			Aggregator:  aggregator,
			// Scratch persistence: regeneration rewrites files, never the
			// database.
			TrackPoints:  memory.NewTrackPointStore(),
			EnvPoints:    memory.NewEnvironmentPointStore(),
			Observations: memory.NewObservationStore(),
			Artifacts:    writer,
			Interval:     *interval,
			Tolerance:    *tolerance,
			Logger:       logger,
		})
		if err != nil {
			logger.Fatalf("Runner setup: %v", err)
		}

		result := runner.Run(ctx, storm)
		result.RunID = batch.RunID
		batch.Results[storm.Code] = result

		if result.Status == domain.StatusComplete {
			fmt.Printf("  %s %-10s %s (artifacts: %s)\n", result.StormCode, result.StormName, result.Status, result.ArtifactDir)
		} else {
			fmt.Printf("  %s %-10s %s at %s: %s\n", result.StormCode, result.StormName, result.Status, result.FailedStage, result.Error)
		}
	}
	batch.FinishedAt = time.Now().UTC()

	if _, err := writer.WriteBatchSummary(batch); err != nil {
		logger.Printf("Warning: write run summary: %v", err)
	}

	if err := ctx.Err(); err != nil {
		logger.Fatalf("Regeneration interrupted: %v", err)
	}
	fmt.Printf("\nRun %s: %d/%d storms regenerated under %s/\n",
		batch.RunID, batch.Completed(), len(batch.Results), *outputDir)
}

// selectStorms resolves the flag selection against the stored population.
func selectStorms(ctx context.Context, storms storage.StormStore, code string, basin domain.Basin, minYear, maxYear int) ([]*domain.Storm, error) {
	if code != "" {
		storm, err := storms.GetByCode(ctx, strings.ToUpper(code))
		if err != nil {
			return nil, err
		}
		return []*domain.Storm{storm}, nil
	}

	if minYear > 0 && maxYear == 0 {
		maxYear = minYear
	}

	var (
		selected []*domain.Storm
		err      error
	)
	if basin.IsValid() {
		selected, err = storms.ListByBasin(ctx, basin)
	} else {
		selected, err = storms.ListByYearRange(ctx, minYear, maxYear)
	}
	if err != nil {
		return nil, err
	}

	if basin.IsValid() && minYear > 0 {
		filtered := selected[:0]
		for _, s := range selected {
			if s.Year >= minYear && s.Year <= maxYear {
				filtered = append(filtered, s)
			}
		}
		selected = filtered
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Code < selected[j].Code })
	return selected, nil
}
