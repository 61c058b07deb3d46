// Package idgen generates the opaque, random, URL-safe 128-bit identifiers
// used throughout Tunly for session ids, credential subjects, and jtis.
package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Generate returns a fresh 128-bit (16-byte) random value, URL-safe
// base64-encoded without padding.
func Generate() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("idgen: failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MustGenerate is Generate but panics on failure. crypto/rand.Read only
// fails if the OS entropy source is broken; callers that can recover
// (such as the agent's reconnect loop) use Generate instead.
func MustGenerate() string {
	id, err := Generate()
	if err != nil {
		panic(err)
	}
	return id
}
