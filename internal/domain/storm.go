package domain

import (
	"fmt"
	"strings"
	"time"
)

// Storm represents one tropical cyclone in the population index.
// Corresponds to the storms table in PostgreSQL.
type Storm struct {
	Code      string    // ATCF identifier, e.g. "AL092022"
	Name      string    // storm name, e.g. "IAN"
	Year      int       // season year
	Basin     Basin     // AL | EP
	StartTime time.Time // timestamp of first track fix (UTC)
	EndTime   time.Time // timestamp of last track fix (UTC)
}

// ArtifactKey returns the per-storm output directory key, "{NAME}_{year}".
func (s Storm) ArtifactKey() string {
	return fmt.Sprintf("%s_%d", strings.ToUpper(s.Name), s.Year)
}

// Validate checks structural validity of the storm record.
func (s Storm) Validate() error {
	if s.Code == "" {
		return fmt.Errorf("%w: storm code is empty", ErrInvalidInput)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: storm name is empty", ErrInvalidInput)
	}
	if !s.Basin.IsValid() {
		return fmt.Errorf("%w: basin %q", ErrInvalidInput, s.Basin)
	}
	if s.EndTime.Before(s.StartTime) {
		return fmt.Errorf("%w: storm %s ends before it starts", ErrInvalidInput, s.Code)
	}
	return nil
}
