package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the byte length of an account address.
const AddressLength = 20

// Address identifies an account: a fraction holder, a payment party, the
// treasury, or the fee sink. It is the last 20 bytes of the Keccak-256 hash
// of the account's uncompressed secp256k1 public key.
type Address [AddressLength]byte

// HexToAddress parses a 0x-prefixed or bare hex string into an Address.
func HexToAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != AddressLength {
		return a, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, AddressLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Hex returns the 0x-prefixed lowercase hex encoding of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return a.Hex()
}

// Role names a capability required by a privileged operation.
type Role string

const (
	// RoleAdmin may redirect the treasury and fee sink and grant roles.
	RoleAdmin Role = "ADMIN"
	// RoleAssetManager may create asset positions.
	RoleAssetManager Role = "ASSET_MANAGER"
	// RoleFeeManager may mutate default and per-asset fees.
	RoleFeeManager Role = "FEE_MANAGER"
)

// AccessControl answers whether an actor holds a role. Every privileged
// operation calls Require at its top, before any state is read or written.
type AccessControl interface {
	Require(actor Address, role Role) error
	Grant(actor Address, role Role)
	Revoke(actor Address, role Role)
}
