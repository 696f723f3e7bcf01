package pipeline

import (
	"context"
	"time"

	"storm-align-lab/internal/domain"
	"storm-align-lab/internal/ingestion"
	"storm-align-lab/internal/ingestion/stub"
	"storm-align-lab/internal/storage"
)

// Fixture data: one hurricane with six hours of track, shear samples at the
// window edges, and three observation granules. The numbers are chosen so
// expected outputs are countable by hand: twelve 30-minute bins, of which the
// first attracts three observations and the last one more, with one far-field
// detection dropped by the radius cutoff.

// FixtureStorm returns the demonstration storm.
func FixtureStorm() *domain.Storm {
	return &domain.Storm{
		Code:      "AL092022",
		Name:      "IAN",
		Year:      2022,
		Basin:     domain.BasinAtlantic,
		StartTime: fixtureTime(12, 0, 0),
		EndTime:   fixtureTime(18, 0, 0),
	}
}

// FixtureTrackFixes returns four fixes at two-hour spacing, intensifying
// toward the end of the window.
func FixtureTrackFixes() []domain.TrackFix {
	return []domain.TrackFix{
		{Timestamp: fixtureTime(12, 0, 0), Lat: 26.30, Lon: -82.10, Status: "TS", MaxWindKt: 60, MinPressureMb: 985, RadiusMaxWindNmi: 30},
		{Timestamp: fixtureTime(14, 0, 0), Lat: 26.55, Lon: -82.25, Status: "HU", MaxWindKt: 75, MinPressureMb: 972, RadiusMaxWindNmi: 25},
		{Timestamp: fixtureTime(16, 0, 0), Lat: 26.80, Lon: -82.40, Status: "HU", MaxWindKt: 95, MinPressureMb: 958, RadiusMaxWindNmi: 20},
		{Timestamp: fixtureTime(18, 0, 0), Lat: 27.05, Lon: -82.55, Status: "HU", MaxWindKt: 110, MinPressureMb: 947, RadiusMaxWindNmi: 20},
	}
}

// FixtureEnvironmentSamples returns two shear samples at the window edges.
// Every fixture bin midpoint lies within the default three-hour tolerance of
// one of them, so an aligned run has no missing shear.
func FixtureEnvironmentSamples() []domain.EnvironmentSample {
	return []domain.EnvironmentSample{
		{Timestamp: fixtureTime(12, 0, 0), ShearMagnitudeKt: 8.5, ShearDirectionDeg: 245},
		{Timestamp: fixtureTime(18, 0, 0), ShearMagnitudeKt: 12.0, ShearDirectionDeg: 260},
	}
}

// FixtureObservationBatches returns three 20-second granules in source form.
// The first two fall in the first bin near the storm center; the third falls
// in the last bin and carries one near-center detection plus one far out over
// the open Atlantic that the radius cutoff must drop.
func FixtureObservationBatches() ([]ingestion.BatchHandle, map[string][]domain.Observation) {
	handles := []ingestion.BatchHandle{
		{ID: "g1", URL: "stub://granules/g1", StartTime: fixtureTime(12, 8, 0)},
		{ID: "g2", URL: "stub://granules/g2", StartTime: fixtureTime(12, 26, 40)},
		{ID: "g3", URL: "stub://granules/g3", StartTime: fixtureTime(17, 36, 20)},
	}
	batches := map[string][]domain.Observation{
		"g1": {
			{ID: "g1-0", Timestamp: fixtureTime(12, 8, 5), Lat: 26.32, Lon: -82.11, AreaM2: 9.6e7, EnergyJ: 3.2e-15},
			{ID: "g1-1", Timestamp: fixtureTime(12, 8, 12), Lat: 26.35, Lon: -82.14, AreaM2: 1.2e8, EnergyJ: 4.1e-15},
		},
		"g2": {
			{ID: "g2-0", Timestamp: fixtureTime(12, 26, 51), Lat: 26.38, Lon: -82.16, AreaM2: 7.4e7, EnergyJ: 2.6e-15},
		},
		"g3": {
			{ID: "g3-0", Timestamp: fixtureTime(17, 36, 25), Lat: 26.98, Lon: -82.52, AreaM2: 1.5e8, EnergyJ: 5.0e-15},
			{ID: "g3-1", Timestamp: fixtureTime(17, 36, 30), Lat: 31.00, Lon: -70.00, AreaM2: 8.8e7, EnergyJ: 2.9e-15},
		},
	}
	return handles, batches
}

// FixtureSources returns stub sources preloaded with the fixture storm's
// track, environment and observation data.
func FixtureSources() (*stub.StubTrackSource, *stub.StubEnvironmentSource, *stub.StubObservationSource) {
	storm := FixtureStorm()
	tracks := stub.NewStubTrackSource(map[string][]domain.TrackFix{storm.Code: FixtureTrackFixes()})
	environment := stub.NewStubEnvironmentSource(map[string][]domain.EnvironmentSample{storm.Code: FixtureEnvironmentSamples()})
	handles, batches := FixtureObservationBatches()
	observations := stub.NewStubObservationSource(handles, batches)
	return tracks, environment, observations
}

// LoadFixtures populates stores with the fixture storm's raw data for
// demonstration runs against in-memory storage.
func LoadFixtures(ctx context.Context, storms storage.StormStore, fixes storage.TrackFixStore, samples storage.EnvironmentSampleStore) error {
	storm := FixtureStorm()
	if err := storms.Insert(ctx, storm); err != nil {
		return err
	}
	if err := fixes.InsertBulk(ctx, storm.Code, FixtureTrackFixes()); err != nil {
		return err
	}
	return samples.InsertBulk(ctx, storm.Code, FixtureEnvironmentSamples())
}

// fixtureTime returns a clock time on the fixture day, 2022-09-26 UTC.
func fixtureTime(hour, min, sec int) time.Time {
	return time.Date(2022, 9, 26, hour, min, sec, 0, time.UTC)
}
