// Package sighash computes a deterministic digest of a signature set.
package sighash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Hash returns the hex SHA-256 of the sorted signatures joined with no
// separator. The result does not depend on input order. Because nothing
// separates the signatures, two inputs whose sorted concatenations are equal
// hash equal. The input slice is not modified.
func Hash(signatures []string) string {
	sorted := make([]string, len(signatures))
	copy(sorted, signatures)
	sort.Strings(sorted)

	h := sha256.New()
	for _, sig := range sorted {
		h.Write([]byte(sig))
	}
	return hex.EncodeToString(h.Sum(nil))
}
