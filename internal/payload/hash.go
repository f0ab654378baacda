package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for hashed payloads.
// The version suffix leaves room for a future algorithm migration.
const (
	DomainContent = "assetgraph/content/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex digest of v's canonical form under domain.
func Hash(domain string, v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ContentHash is the digest the version resolver compares to decide between
// a no-op and a new version. A nil content hashes like an empty object.
func ContentHash(content Object) (string, error) {
	if content == nil {
		content = Object{}
	}
	return Hash(DomainContent, content)
}

// ContentHashBytes hashes already-canonical content bytes.
// Callers must pass the output of MarshalCanonical.
func ContentHashBytes(canonical []byte) string {
	return hashWithDomain(DomainContent, canonical)
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustContentHash(content Object) string {
	h, err := ContentHash(content)
	if err != nil {
		panic(err)
	}
	return h
}
