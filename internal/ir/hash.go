package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashLength is the length of every hex-encoded hash produced by this package.
const HashLength = 64

// Domain prefixes for internal identities that never leave the process.
// Entity and receipt hashes are NOT domain separated: they must equal
// Hash256(StableStringify(value)) so that upstream producers can recompute them.
const (
	DomainSnapshot = "canon/snapshot/v1"
)

// Hash256 returns the lowercase hex SHA-256 digest of data.
func Hash256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeStableHash returns Hash256(StableStringify(v)).
func ComputeStableHash(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ComputeStableHash: failed to marshal: %w", err)
	}
	return Hash256(canonical), nil
}

// MustStableHash is like ComputeStableHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStableHash(v any) string {
	h, err := ComputeStableHash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// IsHash reports whether s is a 64 character lowercase hex string.
func IsHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
