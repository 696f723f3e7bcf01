package discovery

import (
	"strings"
	"testing"
	"time"

	"storm-align-lab/internal/domain"
)

// Two storm sections in the public best-track format: IAN (reaches HU)
// and KARL (peaks at TS). The last IAN fix carries an unreported RMW.
const sampleDataset = `AL092022,                IAN,      4,
20220926, 0000,  , HU, 21.6N,  84.0W, 110,  952,  130,  110,   70,  120,   60,   60,   40,   50,   35,   30,   25,   30,   20
20220926, 0600,  , HU, 22.4N,  83.7W, 120,  947,  130,  110,   70,  120,   60,   60,   40,   50,   35,   30,   25,   30,   15
20220926, 1200,  , HU, 23.2N,  83.2W, 100,  960,  130,  110,   70,  120,   60,   60,   40,   50,   35,   30,   25,   30, -999
20220926, 1800,  , TS, 24.0N,  82.9W,  60,  980,  130,  110,   70,  120,    0,    0,    0,    0,    0,    0,    0,    0,   40
AL132022,               KARL,      2,
20221011, 1200,  , TS, 19.8N,  92.6W,  45, 1001,   60,   60,    0,   60,    0,    0,    0,    0,    0,    0,    0,    0,   30
20221011, 1800,  , TS, 19.9N,  92.9W,  50,  999,   60,   60,    0,   60,    0,    0,    0,    0,    0,    0,    0,    0,   25
`

func TestBestTrackParser_Parse(t *testing.T) {
	parser := NewBestTrackParser()

	tracks, err := parser.Parse(strings.NewReader(sampleDataset))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(tracks))
	}

	ian := tracks[0]
	if ian.Code != "AL092022" {
		t.Errorf("Expected code AL092022, got %s", ian.Code)
	}
	if ian.Name != "IAN" {
		t.Errorf("Expected name IAN, got %s", ian.Name)
	}
	if len(ian.Fixes) != 4 {
		t.Fatalf("Expected 4 IAN fixes, got %d", len(ian.Fixes))
	}

	first := ian.Fixes[0]
	wantTS := time.Date(2022, 9, 26, 0, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(wantTS) {
		t.Errorf("First fix timestamp: got %v, want %v", first.Timestamp, wantTS)
	}
	if first.Lat != 21.6 {
		t.Errorf("First fix lat: got %v, want 21.6", first.Lat)
	}
	// West longitude comes back negative
	if first.Lon != -84.0 {
		t.Errorf("First fix lon: got %v, want -84.0", first.Lon)
	}
	if first.Status != "HU" {
		t.Errorf("First fix status: got %s, want HU", first.Status)
	}
	if first.MaxWindKt != 110 {
		t.Errorf("First fix max wind: got %v, want 110", first.MaxWindKt)
	}
	if first.MinPressureMb != 952 {
		t.Errorf("First fix pressure: got %v, want 952", first.MinPressureMb)
	}
	if first.RadiusMaxWindNmi != 20 {
		t.Errorf("First fix RMW: got %v, want 20", first.RadiusMaxWindNmi)
	}

	karl := tracks[1]
	if karl.Name != "KARL" || len(karl.Fixes) != 2 {
		t.Errorf("Expected KARL with 2 fixes, got %s with %d", karl.Name, len(karl.Fixes))
	}
}

func TestBestTrackParser_MissingRMWPassesThrough(t *testing.T) {
	parser := NewBestTrackParser()

	tracks, err := parser.Parse(strings.NewReader(sampleDataset))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	// The dataset encodes unreported values as -999; the parser does not
	// rewrite them, downstream bin filtering decides what to do.
	fix := tracks[0].Fixes[2]
	if fix.RadiusMaxWindNmi != -999 {
		t.Errorf("Expected RMW -999 to pass through, got %v", fix.RadiusMaxWindNmi)
	}
}

func TestBestTrackParser_MalformedFixLineSkipped(t *testing.T) {
	parser := NewBestTrackParser()

	dataset := `AL092022,                IAN,      3,
20220926, 0000,  , HU, 21.6N,  84.0W, 110,  952,  130,  110,   70,  120,   60,   60,   40,   50,   35,   30,   25,   30,   20
this line is corrupt
20220926, 1200,  , HU, 23.2N,  83.2W, 100,  960,  130,  110,   70,  120,   60,   60,   40,   50,   35,   30,   25,   30,   18
`

	tracks, err := parser.Parse(strings.NewReader(dataset))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(tracks))
	}
	if len(tracks[0].Fixes) != 2 {
		t.Errorf("Expected 2 fixes with corrupt line skipped, got %d", len(tracks[0].Fixes))
	}
}

func TestBestTrackParser_ResyncsAfterGarbage(t *testing.T) {
	parser := NewBestTrackParser()

	dataset := `garbage that is not a header
AL092022,                IAN,      1,
20220926, 0000,  , HU, 21.6N,  84.0W, 110,  952,  130,  110,   70,  120,   60,   60,   40,   50,   35,   30,   25,   30,   20
more garbage between sections
AL132022,               KARL,      1,
20221011, 1200,  , TS, 19.8N,  92.6W,  45, 1001,   60,   60,    0,   60,    0,    0,    0,    0,    0,    0,    0,    0,   30
`

	tracks, err := parser.Parse(strings.NewReader(dataset))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(tracks) != 2 {
		t.Fatalf("Expected 2 tracks after resync, got %d", len(tracks))
	}
	if tracks[0].Code != "AL092022" || tracks[1].Code != "AL132022" {
		t.Errorf("Wrong tracks: got %s, %s", tracks[0].Code, tracks[1].Code)
	}
}

func TestBestTrackParser_EmptyInput(t *testing.T) {
	parser := NewBestTrackParser()

	tracks, err := parser.Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("Expected 0 tracks, got %d", len(tracks))
	}
}

func TestParseHemisphere(t *testing.T) {
	cases := []struct {
		input    string
		positive byte
		want     float64
		ok       bool
	}{
		{"28.0N", 'N', 28.0, true},
		{"15.5S", 'N', -15.5, true},
		{"94.5W", 'E', -94.5, true},
		{"120.0E", 'E', 120.0, true},
		{"N", 'N', 0, false},
		{"abcN", 'N', 0, false},
	}

	for _, c := range cases {
		got, ok := parseHemisphere(c.input, c.positive)
		if ok != c.ok {
			t.Errorf("parseHemisphere(%q): ok=%v, want %v", c.input, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("parseHemisphere(%q): got %v, want %v", c.input, got, c.want)
		}
	}
}

func TestStormTrack_Storm(t *testing.T) {
	track := &StormTrack{
		Code: "AL092022",
		Name: "IAN",
		Fixes: []domain.TrackFix{
			{Timestamp: time.Date(2022, 9, 26, 6, 0, 0, 0, time.UTC)},
			{Timestamp: time.Date(2022, 9, 23, 6, 0, 0, 0, time.UTC)},
			{Timestamp: time.Date(2022, 9, 30, 18, 0, 0, 0, time.UTC)},
		},
	}

	storm, ok := track.Storm()
	if !ok {
		t.Fatal("Expected Storm to succeed")
	}

	if storm.Basin != domain.BasinAtlantic {
		t.Errorf("Expected basin AL, got %s", storm.Basin)
	}
	if storm.Year != 2022 {
		t.Errorf("Expected year 2022, got %d", storm.Year)
	}
	// Start and end come from fix extremes, not file order
	if !storm.StartTime.Equal(time.Date(2022, 9, 23, 6, 0, 0, 0, time.UTC)) {
		t.Errorf("Wrong start time: %v", storm.StartTime)
	}
	if !storm.EndTime.Equal(time.Date(2022, 9, 30, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("Wrong end time: %v", storm.EndTime)
	}
}

func TestStormTrack_Storm_Invalid(t *testing.T) {
	// No fixes
	empty := &StormTrack{Code: "AL092022", Name: "IAN"}
	if _, ok := empty.Storm(); ok {
		t.Error("Expected false for track without fixes")
	}

	// Unknown basin prefix
	odd := &StormTrack{
		Code:  "XX012022",
		Name:  "ODD",
		Fixes: []domain.TrackFix{{Timestamp: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)}},
	}
	if _, ok := odd.Storm(); ok {
		t.Error("Expected false for unknown basin")
	}
}

func TestStormTrack_ReachedStatus(t *testing.T) {
	track := &StormTrack{
		Code: "AL092022",
		Fixes: []domain.TrackFix{
			{Status: "TD"},
			{Status: "TS"},
			{Status: "HU"},
		},
	}

	if !track.ReachedStatus(domain.StatusHurricane) {
		t.Error("Expected HU to be reached")
	}
	if track.ReachedStatus("EX") {
		t.Error("Expected EX to not be reached")
	}
}
