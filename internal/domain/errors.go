package domain

import "errors"

// Alignment error taxonomy. InvalidInput and NotFound are fatal to a single
// storm's run; SourceUnavailable is recovered at the batch level as an empty
// contribution. A nearest-neighbor miss beyond tolerance is a missing value,
// not an error.
var (
	// ErrInvalidInput indicates empty or malformed fixes, samples, or bins.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a storm identifier absent from the population index.
	ErrNotFound = errors.New("not found")

	// ErrSourceUnavailable indicates a remote batch could not be fetched or parsed.
	ErrSourceUnavailable = errors.New("source unavailable")
)
