package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeBatchID computes a deterministic batch_id using SHA256.
// Formula: SHA256(source|object_path)
// Returns the base58-encoded hash (43-44 characters).
//
// Object paths are unique within a source but unwieldy as cache and storage
// keys; the hash gives every batch a short stable identity across runs.
func ComputeBatchID(
	source string,
	objectPath string,
) string {
	data := fmt.Sprintf("%s|%s",
		source,
		objectPath,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
