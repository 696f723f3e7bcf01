package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/summary"
)

// RenderStormSummary renders one storm's radial banding table as Markdown.
func RenderStormSummary(storm *domain.Storm, bands *summary.StormBands) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# %s %d (%s)\n\n", storm.Name, storm.Year, storm.Code))
	sb.WriteString(fmt.Sprintf("Window: %s to %s\n\n",
		storm.StartTime.Format(time.RFC3339), storm.EndTime.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Bins: %d | Observations: %d | Total energy (J): %s\n\n",
		len(bands.Bins), bands.Observations, formatFloat(bands.EnergyJ)))

	// Radial bands
	sb.WriteString("## Radial Bands\n\n")
	if len(bands.Bins) > 0 {
		sb.WriteString("| Bin Midpoint | Observations | Inner Core | Outer Band | Energy (J) |\n")
		sb.WriteString("|--------------|--------------|------------|------------|------------|\n")
		for _, bin := range bands.Bins {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %s |\n",
				bin.Midpoint.Format(time.RFC3339),
				bin.Observations, bin.InnerCore, bin.OuterBand, formatFloat(bin.EnergyJ)))
		}
		sb.WriteString(fmt.Sprintf("| Total | %d | %d | %d | %s |\n",
			bands.Observations, bands.InnerCore, bands.OuterBand, formatFloat(bands.EnergyJ)))
	} else {
		sb.WriteString("No aggregated observations available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderBatchSummary renders one alignment run across its whole storm
// population as Markdown.
func RenderBatchSummary(batch *domain.BatchResult) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Alignment Run %s\n\n", batch.RunID))
	sb.WriteString(fmt.Sprintf("Started: %s\n\n", batch.StartedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Finished: %s (%s)\n\n",
		batch.FinishedAt.Format(time.RFC3339), batch.FinishedAt.Sub(batch.StartedAt)))
	sb.WriteString(fmt.Sprintf("Storms: %d | Completed: %d\n\n", len(batch.Results), batch.Completed()))

	// Stage successes
	sb.WriteString("## Stage Successes\n\n")
	sb.WriteString("| Stage | Succeeded |\n")
	sb.WriteString("|-------|-----------|\n")
	for _, stage := range []domain.Stage{
		domain.StageTrack, domain.StageEnvironment, domain.StageSpatial, domain.StagePersist,
	} {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", stage, batch.StageSuccesses(stage)))
	}
	sb.WriteString("\n")

	// Per-storm outcomes, sorted by storm code
	sb.WriteString("## Storms\n\n")
	if len(batch.Results) > 0 {
		codes := make([]string, 0, len(batch.Results))
		for code := range batch.Results {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		sb.WriteString("| Storm | Name | Status | Failed Stage | Error | Artifacts |\n")
		sb.WriteString("|-------|------|--------|--------------|-------|-----------|\n")
		for _, code := range codes {
			r := batch.Results[code]
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				r.StormCode, r.StormName, r.Status, r.FailedStage, r.Error, r.ArtifactDir))
		}
	} else {
		sb.WriteString("No storms selected.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
