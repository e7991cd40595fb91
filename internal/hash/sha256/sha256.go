// Package sha256 computes digests used as archive object names.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher implements policelog.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashText hashes extracted text with line endings normalized, so the same document
// fetched through different proxies maps to one archive key.
func (h *Hasher) HashText(text string) string {
	digest, _ := h.Hash([]byte(strings.ReplaceAll(text, "\r\n", "\n")))
	return digest
}
