package domain

import "time"

// Stage identifies one step of a storm's alignment pipeline.
type Stage string

const (
	StageTrack       Stage = "track"
	StageEnvironment Stage = "environment"
	StageSpatial     Stage = "spatial"
	StagePersist     Stage = "persist"
)

// String returns the string representation of Stage.
func (s Stage) String() string {
	return string(s)
}

// StormStatus tracks how far a storm's run progressed. The machine is
// linear: PENDING -> TRACK_DONE -> ENV_DONE -> SPATIAL_DONE -> COMPLETE,
// with FAILED absorbing from any stage.
type StormStatus string

const (
	StatusPending     StormStatus = "PENDING"
	StatusTrackDone   StormStatus = "TRACK_DONE"
	StatusEnvDone     StormStatus = "ENV_DONE"
	StatusSpatialDone StormStatus = "SPATIAL_DONE"
	StatusComplete    StormStatus = "COMPLETE"
	StatusFailed      StormStatus = "FAILED"
)

// String returns the string representation of StormStatus.
func (s StormStatus) String() string {
	return string(s)
}

// Terminal reports whether no further stages will run for the storm.
func (s StormStatus) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// StageOutcome records one stage's result for one storm.
type StageOutcome struct {
	Stage Stage  // which stage
	OK    bool   // whether the stage succeeded
	Rows  int    // rows produced by the stage
	Error string // failure reason, empty on success
}

// StormResult accumulates per-stage outcomes for one storm's run.
// Corresponds to the run_results table in PostgreSQL.
type StormResult struct {
	RunID       string         // batch run identifier
	StormCode   string         // ATCF identifier
	StormName   string         // storm name
	Status      StormStatus    // terminal status of the run
	FailedStage Stage          // set when Status == FAILED
	Error       string         // failure reason, empty on success
	Stages      []StageOutcome // ordered per-stage outcomes
	ArtifactDir string         // output handle for persisted artifacts
	StartedAt   time.Time      // wall-clock stage-machine entry
	FinishedAt  time.Time      // wall-clock stage-machine exit
}

// Outcome returns the recorded outcome for a stage, if the stage ran.
func (r StormResult) Outcome(stage Stage) (StageOutcome, bool) {
	for _, o := range r.Stages {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// BatchResult maps every storm in a population run to its result. Callers
// always receive one entry per storm; partial data loss is visible as a
// FAILED entry, never silent.
type BatchResult struct {
	RunID      string                  // batch run identifier
	Results    map[string]*StormResult // storm code -> result
	StartedAt  time.Time
	FinishedAt time.Time
}

// Completed counts storms that reached COMPLETE.
func (b BatchResult) Completed() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == StatusComplete {
			n++
		}
	}
	return n
}

// StageSuccesses counts storms whose given stage succeeded.
func (b BatchResult) StageSuccesses(stage Stage) int {
	n := 0
	for _, r := range b.Results {
		if o, ok := r.Outcome(stage); ok && o.OK {
			n++
		}
	}
	return n
}
