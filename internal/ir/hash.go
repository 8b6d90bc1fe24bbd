package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainQueryShape = "strapiql/query-shape/v1"
)

// Fingerprint computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func Fingerprint(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
