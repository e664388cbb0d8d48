package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content fingerprints. The version suffix leaves room
// for an algorithm migration without colliding with old hashes.
const (
	DomainRevision = "gantry/revision/v1"
	DomainEntry    = "gantry/entry/v1"
	DomainTrace    = "gantry/trace/v1"
)

// Fingerprint canonically marshals v and hashes it under the given domain.
// The null byte between domain and payload keeps the boundary unambiguous.
func Fingerprint(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustFingerprint is Fingerprint for inputs known to be canonical, such as
// values assembled by the journal itself. It panics on error.
func MustFingerprint(domain string, v any) string {
	fp, err := Fingerprint(domain, v)
	if err != nil {
		panic(err)
	}
	return fp
}
