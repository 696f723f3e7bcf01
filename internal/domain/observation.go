package domain

import "time"

// Observation represents one geolocated lightning group detection from a
// high-volume external source. Observations arrive in coarse time-keyed
// batches that are not aligned to any storm's bin grid.
type Observation struct {
	ID          string    // deterministic content-derived identifier
	Timestamp   time.Time // detection time (UTC)
	Lat         float64   // degrees north
	Lon         float64   // degrees east
	AreaM2      float64   // illuminated group footprint (m^2)
	EnergyJ     float64   // radiant group energy (J)
	QualityFlag int       // source data quality flag, 0 = good
}

// BinObservation is an observation annotated with its geodesic relation to a
// bin's interpolated storm center.
type BinObservation struct {
	Observation
	DistanceM  float64 // geodesic distance from the bin center (m)
	BearingDeg float64 // initial bearing from the bin center, [0, 360)
}

// BinAggregate holds the distance-filtered observations for one bin.
// Owned exclusively by the aggregation run that produced it; written once.
type BinAggregate struct {
	StormCode    string           // ATCF identifier
	Bin          TimeBin          // the aligned bin
	CenterLat    float64          // interpolated storm center at the midpoint
	CenterLon    float64          // interpolated storm center at the midpoint
	RadiusM      float64          // cutoff radius applied (m)
	Observations []BinObservation // kept detections, distance < RadiusM
}

// Empty reports whether the bin attracted no observations.
func (a BinAggregate) Empty() bool {
	return len(a.Observations) == 0
}

// ObservationRow is one aggregated observation flattened for persistence.
// Corresponds to the bin_observations table in ClickHouse.
type ObservationRow struct {
	StormCode   string
	BinMidpoint time.Time
	ID          string
	Timestamp   time.Time
	Lat         float64
	Lon         float64
	AreaM2      float64
	EnergyJ     float64
	QualityFlag int
	DistanceM   float64
	BearingDeg  float64
}

// Rows flattens the aggregate into persistable observation rows.
func (a BinAggregate) Rows() []*ObservationRow {
	rows := make([]*ObservationRow, 0, len(a.Observations))
	for _, o := range a.Observations {
		rows = append(rows, &ObservationRow{
			StormCode:   a.StormCode,
			BinMidpoint: a.Bin.Midpoint,
			ID:          o.ID,
			Timestamp:   o.Timestamp,
			Lat:         o.Lat,
			Lon:         o.Lon,
			AreaM2:      o.AreaM2,
			EnergyJ:     o.EnergyJ,
			QualityFlag: o.QualityFlag,
			DistanceM:   o.DistanceM,
			BearingDeg:  o.BearingDeg,
		})
	}
	return rows
}
