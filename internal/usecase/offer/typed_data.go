// Package offer implements off-chain-signed counter-offer authorization:
// deterministic struct encoding under a domain separator, Keccak-256
// digesting, compact secp256k1 signer recovery, and single-use nonces.
package offer

import (
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

// SignatureLength is the compact signature size: 1 recovery header byte
// followed by r and s.
const SignatureLength = 65

// Domain scopes signed offers to one deployment so a signature can never be
// replayed against another marketplace instance.
type Domain struct {
	Name    string
	Version string
	Origin  string // deployment identifier, e.g. the marketplace account
}

// Separator returns the 32-byte domain separator.
func (d Domain) Separator() [32]byte {
	return keccak(
		keccakBytes([]byte(d.Name)),
		keccakBytes([]byte(d.Version)),
		keccakBytes([]byte(d.Origin)),
	)
}

// CounterOffer is the signed purchase authorization. OfferPrice is per
// fraction; Deadline is unix seconds.
type CounterOffer struct {
	Owner      domain.Address
	Offeror    domain.Address
	OfferPrice decimal.Decimal
	Key        domain.AssetKey
	Fractions  decimal.Decimal
	Nonce      uint64
	Deadline   int64
}

// Digest returns the signing digest for an offer under the domain:
// keccak256(0x19 0x01 ‖ separator ‖ structHash), with every struct field
// encoded as a 32-byte big-endian word.
func (d Domain) Digest(o CounterOffer) [32]byte {
	structHash := keccak(
		padAddress(o.Owner),
		padAddress(o.Offeror),
		padInt(o.OfferPrice.BigInt()),
		padInt(o.Key.MainID()),
		padInt(o.Key.SubID()),
		padInt(o.Fractions.BigInt()),
		padInt(new(big.Int).SetUint64(o.Nonce)),
		padInt(big.NewInt(o.Deadline)),
	)
	sep := d.Separator()
	return keccak([]byte{0x19, 0x01}, sep[:], structHash[:])
}

// RecoverSigner returns the address that produced the compact signature
// over the digest.
func RecoverSigner(digest [32]byte, signature []byte) (domain.Address, error) {
	if len(signature) != SignatureLength {
		return domain.Address{}, fmt.Errorf("%w: signature must be %d bytes", domain.ErrInvalidSignature, SignatureLength)
	}
	pub, _, err := secpecdsa.RecoverCompact(signature, digest[:])
	if err != nil {
		return domain.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return PubKeyAddress(pub), nil
}

// Sign produces a compact signature over the digest. Client-side helper,
// also used by tests.
func Sign(priv *secp256k1.PrivateKey, digest [32]byte) []byte {
	return secpecdsa.SignCompact(priv, digest[:], false)
}

// PubKeyAddress derives the account address from a public key: the last 20
// bytes of the Keccak-256 hash of the uncompressed key body.
func PubKeyAddress(pub *secp256k1.PublicKey) domain.Address {
	h := keccakBytes(pub.SerializeUncompressed()[1:])
	var a domain.Address
	copy(a[:], h[32-domain.AddressLength:])
	return a
}

func padAddress(a domain.Address) []byte {
	out := make([]byte, 32)
	copy(out[32-domain.AddressLength:], a[:])
	return out
}

func padInt(v *big.Int) []byte {
	out := make([]byte, 32)
	if v != nil && v.Sign() > 0 {
		v.FillBytes(out)
	}
	return out
}

func keccak(chunks ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

func keccakBytes(b []byte) []byte {
	h := keccak(b)
	return h[:]
}
