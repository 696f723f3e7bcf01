package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeObservationID computes a deterministic observation_id using SHA256.
// Formula: SHA256(batch_id|event_index|timestamp_ms)
// Returns the base58-encoded hash (43-44 characters).
//
// Lightning group records carry no identifier of their own, so the ID is
// derived from the batch they arrived in and their position within it.
func ComputeObservationID(
	batchID string,
	eventIndex int,
	timestampMs int64,
) string {
	data := fmt.Sprintf("%s|%d|%d",
		batchID,
		eventIndex,
		timestampMs,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
