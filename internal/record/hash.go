package record

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainCommand is the domain prefix for command digests.
// Version suffix enables future algorithm migration.
const DomainCommand = "dt/command/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CommandDigest returns the bucket key for a command.
// The input is normalized first, so callers may pass raw text.
func CommandDigest(command string) string {
	return hashWithDomain(DomainCommand, []byte(Normalize(command)))
}

// ShortDigest returns the first 12 hex characters of a digest for display.
func ShortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
