package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex sha256 of s. Component sources are memoized
// under it.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ShortDigest returns the first n hex characters of Digest(s)
func ShortDigest(s string, n int) string {
	d := Digest(s)
	if n > 0 && n < len(d) {
		return d[:n]
	}
	return d
}

// ScopedClass names the class a css`...` body is scoped to. Equal bodies
// share a class so their style is injected once.
func ScopedClass(prefix, body string) string {
	return prefix + "-" + ShortDigest(body, 8)
}
