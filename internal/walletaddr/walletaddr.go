// Package walletaddr validates Solana wallet addresses.
package walletaddr

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned for inputs that are not base58-encoded
// 32-byte ed25519 public keys.
var ErrInvalidAddress = errors.New("invalid wallet address")

// Validate checks that addr decodes to a 32-byte ed25519 curve point.
// System wallets are regular keypairs, so off-curve addresses (PDAs)
// are rejected.
func Validate(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: decoded length %d, want 32", ErrInvalidAddress, len(raw))
	}

	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%w: not on the ed25519 curve", ErrInvalidAddress)
	}

	return nil
}

// IsValid reports whether addr is a valid wallet address.
func IsValid(addr string) bool {
	return Validate(addr) == nil
}
