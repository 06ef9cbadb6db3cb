package render

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex SHA-256 of a rendered configuration. The reconciler
// stores the digest of the last successfully applied configuration and skips
// the write and restart when nothing changed.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
