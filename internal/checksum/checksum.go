// Package checksum fingerprints file contents for scan-cache keys and chunk
// hashing.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum digests data with SHA-256 and returns the lowercase hex encoding.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
