package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateKey hashes the identifying parts of an update into a fixed-length
// key. The full digest is truncated to 16 bytes, which is plenty of margin
// against collisions at bot traffic volumes.
func GenerateKey(parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v\x00", part)
	}

	return hex.EncodeToString(h.Sum(nil)[:16])
}
