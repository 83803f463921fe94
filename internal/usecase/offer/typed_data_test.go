package offer

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

var testDomain = Domain{Name: "fracta-marketplace", Version: "1", Origin: "test-origin"}

func testOffer(owner, offeror domain.Address) CounterOffer {
	return CounterOffer{
		Owner:      owner,
		Offeror:    offeror,
		OfferPrice: decimal.NewFromInt(950),
		Key:        domain.AssetKey{Main: "1", Sub: "0"},
		Fractions:  decimal.NewFromInt(500),
		Nonce:      0,
		Deadline:   1_800_000_000,
	}
}

func TestSignAndRecover(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	owner := PubKeyAddress(priv.PubKey())

	o := testOffer(owner, domain.Address{0x02})
	digest := testDomain.Digest(o)
	sig := Sign(priv, digest)
	require.Len(t, sig, SignatureLength)

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, owner, recovered)
}

func TestRecover_WrongSigner(t *testing.T) {
	ownerKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	otherKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	owner := PubKeyAddress(ownerKey.PubKey())

	o := testOffer(owner, domain.Address{0x02})
	digest := testDomain.Digest(o)
	sig := Sign(otherKey, digest)

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.NotEqual(t, owner, recovered)
}

func TestDigest_ChangesWithFields(t *testing.T) {
	owner := domain.Address{0x01}
	base := testOffer(owner, domain.Address{0x02})

	tampered := base
	tampered.OfferPrice = decimal.NewFromInt(951)
	assert.NotEqual(t, testDomain.Digest(base), testDomain.Digest(tampered))

	bumped := base
	bumped.Nonce = 1
	assert.NotEqual(t, testDomain.Digest(base), testDomain.Digest(bumped))

	otherDomain := Domain{Name: "fracta-marketplace", Version: "1", Origin: "other-origin"}
	assert.NotEqual(t, testDomain.Digest(base), otherDomain.Digest(base))
}

func TestRecover_MalformedSignature(t *testing.T) {
	o := testOffer(domain.Address{0x01}, domain.Address{0x02})
	digest := testDomain.Digest(o)

	_, err := RecoverSigner(digest, []byte{0x01, 0x02})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	garbage := make([]byte, SignatureLength)
	_, err = RecoverSigner(digest, garbage)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}
