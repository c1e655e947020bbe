package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex SHA-256 of text. It is only used to derive cache
// keys from arbitrary strings such as URLs and post bodies.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
