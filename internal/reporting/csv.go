package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"storm-align-lab/internal/domain"
)

// Timestamps render as RFC 3339 with fractional seconds only when present,
// so whole-second rows stay clean while sub-second detections keep their
// precision.
const timeFormat = time.RFC3339Nano

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatNullableFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// RenderTrackCSV renders bin-aligned track points as CSV.
func RenderTrackCSV(points []domain.InterpolatedTrackPoint) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write([]string{
		"timestamp", "lat", "lon", "motion_direction_deg",
		"status", "max_wind_kt", "min_pressure_mb", "radius_max_wind_nmi",
	})
	for _, p := range points {
		w.Write([]string{
			p.Timestamp.Format(timeFormat),
			formatFloat(p.Lat),
			formatFloat(p.Lon),
			formatFloat(p.MotionDirectionDeg),
			p.Status,
			formatFloat(p.MaxWindKt),
			formatFloat(p.MinPressureMb),
			formatFloat(p.RadiusMaxWindNmi),
		})
	}

	w.Flush()
	return sb.String()
}

// RenderEnvironmentCSV renders bin-aligned environment points as CSV.
// Points beyond the join tolerance render as empty cells, never as zeros.
func RenderEnvironmentCSV(points []domain.InterpolatedEnvironmentPoint) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write([]string{"timestamp", "shear_magnitude_kt", "shear_direction_deg"})
	for _, p := range points {
		w.Write([]string{
			p.Timestamp.Format(timeFormat),
			formatNullableFloat(p.ShearMagnitudeKt),
			formatNullableFloat(p.ShearDirectionDeg),
		})
	}

	w.Flush()
	return sb.String()
}

// RenderObservationsCSV flattens bin aggregates into one observation row per
// kept detection, in bin order.
func RenderObservationsCSV(aggregates []domain.BinAggregate) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write([]string{
		"bin_midpoint", "id", "timestamp", "lat", "lon",
		"area_m2", "energy_j", "quality_flag", "distance_m", "bearing_deg",
	})
	for _, agg := range aggregates {
		for _, row := range agg.Rows() {
			w.Write([]string{
				row.BinMidpoint.Format(timeFormat),
				row.ID,
				row.Timestamp.Format(timeFormat),
				formatFloat(row.Lat),
				formatFloat(row.Lon),
				formatFloat(row.AreaM2),
				formatFloat(row.EnergyJ),
				strconv.Itoa(row.QualityFlag),
				formatFloat(row.DistanceM),
				formatFloat(row.BearingDeg),
			})
		}
	}

	w.Flush()
	return sb.String()
}
