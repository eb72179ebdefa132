// Package idgen mints opaque request identifiers. Transaction identity is
// store-assigned and numeric; these ids only correlate log lines and feed
// events across a single request.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

const randomBytes = 12

// WithPrefix returns prefix plus 24 random hex characters, e.g.
// WithPrefix("req_") → "req_5f3a...". crypto/rand failure is unrecoverable
// process state, so it panics rather than returning a guessable id.
func WithPrefix(prefix string) string {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		panic("idgen: crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}
