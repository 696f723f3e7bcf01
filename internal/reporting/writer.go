// Package reporting writes the file artifacts of an alignment run: per-storm
// CSV series, per-storm banding summaries, and the run-level Markdown report.
package reporting

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/observability"
	"storm-align-lab/internal/pipeline"
	"storm-align-lab/internal/summary"
)

// Artifact file names.
const (
	trackFileName        = "besttrack.csv"
	environmentFileName  = "environment.csv"
	observationsFileName = "observations.csv"
	summaryFileName      = "summary.md"
	batchSummaryFileName = "run_summary.md"
)

// Writer persists artifact directories under a single output root.
type Writer struct {
	outputDir string
	logger    *log.Logger
}

var _ pipeline.ArtifactWriter = (*Writer)(nil)

// WriterOptions contains configuration for creating a Writer.
type WriterOptions struct {
	OutputDir string // required: root for artifact directories
	Logger    *log.Logger
}

// NewWriter creates an artifact writer rooted at opts.OutputDir.
func NewWriter(opts WriterOptions) (*Writer, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("%w: output directory is required", domain.ErrInvalidInput)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{outputDir: opts.OutputDir, logger: logger}, nil
}

// WriteStormArtifacts writes one storm's aligned series and banding summary
// into {NAME}_{year}/ under the output root and returns that directory key.
func (w *Writer) WriteStormArtifacts(ctx context.Context, storm *domain.Storm, track []domain.InterpolatedTrackPoint, environment []domain.InterpolatedEnvironmentPoint, aggregates []domain.BinAggregate) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := storm.ArtifactKey()
	dir := filepath.Join(w.outputDir, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	if err := w.writeFile(dir, trackFileName, RenderTrackCSV(track)); err != nil {
		return "", err
	}
	if err := w.writeFile(dir, environmentFileName, RenderEnvironmentCSV(environment)); err != nil {
		return "", err
	}
	if err := w.writeFile(dir, observationsFileName, RenderObservationsCSV(aggregates)); err != nil {
		return "", err
	}

	bands := summary.Compute(storm.Code, aggregates, track)
	if err := w.writeFile(dir, summaryFileName, RenderStormSummary(storm, bands)); err != nil {
		return "", err
	}

	w.logger.Printf("Storm %s: artifacts written to %s", storm.Code, dir)
	return key, nil
}

// WriteBatchSummary writes the run-level Markdown summary at the output root
// and returns its path.
func (w *Writer) WriteBatchSummary(batch *domain.BatchResult) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := w.writeFile(w.outputDir, batchSummaryFileName, RenderBatchSummary(batch)); err != nil {
		return "", err
	}
	path := filepath.Join(w.outputDir, batchSummaryFileName)
	w.logger.Printf("Run %s: summary written to %s", batch.RunID, path)
	return path, nil
}

func (w *Writer) writeFile(dir, name, content string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	observability.RecordArtifactWritten()
	return nil
}
