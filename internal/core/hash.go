// AngelaMos | 2026
// hash.go

package core

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ContentHash returns a stable hex fingerprint for raw file bytes.
func ContentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
