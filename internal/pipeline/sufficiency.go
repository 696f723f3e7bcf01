package pipeline

import (
	"fmt"
	"time"

	"storm-align-lab/internal/domain"
)

// SufficiencyCheck represents one pre-flight data criterion for a storm.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all pre-flight checks for one storm.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// Failures describes each failing check, for error messages and reports.
func (r *SufficiencyResult) Failures() []string {
	var failures []string
	for _, c := range r.Checks {
		if !c.Pass {
			failures = append(failures, fmt.Sprintf("%s: %s (need %s)", c.Name, c.Actual, c.Threshold))
		}
	}
	return failures
}

// CheckSufficiency validates that a storm's fetched track data can support an
// alignment run before any stage work happens. Interpolation needs at least
// two fixes and a track window no shorter than one bin; spatial aggregation
// additionally needs at least one fix with a usable radius of maximum winds,
// since the cutoff radius is derived from it.
func CheckSufficiency(fixes []domain.TrackFix, interval time.Duration, spatialEnabled bool) *SufficiencyResult {
	result := &SufficiencyResult{AllPass: true}
	add := func(c SufficiencyCheck) {
		result.Checks = append(result.Checks, c)
		if !c.Pass {
			result.AllPass = false
		}
	}

	add(SufficiencyCheck{
		Name:      "Track fixes",
		Threshold: ">= 2",
		Actual:    fmt.Sprintf("%d", len(fixes)),
		Pass:      len(fixes) >= 2,
	})

	span := trackSpan(fixes)
	add(SufficiencyCheck{
		Name:      "Track window",
		Threshold: fmt.Sprintf(">= %s", interval),
		Actual:    span.String(),
		Pass:      span >= interval,
	})

	if spatialEnabled {
		withRMW := 0
		for _, f := range fixes {
			if f.RadiusMaxWindNmi > 0 {
				withRMW++
			}
		}
		add(SufficiencyCheck{
			Name:      "Fixes with radius of maximum winds",
			Threshold: ">= 1",
			Actual:    fmt.Sprintf("%d", withRMW),
			Pass:      withRMW >= 1,
		})
	}

	return result
}

// trackWindow returns the earliest and latest fix timestamps.
// Fixes need not arrive sorted.
func trackWindow(fixes []domain.TrackFix) (time.Time, time.Time) {
	if len(fixes) == 0 {
		return time.Time{}, time.Time{}
	}
	first, last := fixes[0].Timestamp, fixes[0].Timestamp
	for _, f := range fixes[1:] {
		if f.Timestamp.Before(first) {
			first = f.Timestamp
		}
		if f.Timestamp.After(last) {
			last = f.Timestamp
		}
	}
	return first, last
}

// trackSpan returns the duration covered by the fixes.
func trackSpan(fixes []domain.TrackFix) time.Duration {
	first, last := trackWindow(fixes)
	return last.Sub(first)
}
