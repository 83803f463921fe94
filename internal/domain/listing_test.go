package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestListing_Validate(t *testing.T) {
	owner := Address{1}

	valid := Listing{
		Key:             AssetKey{Main: "1", Sub: "0"},
		Owner:           owner,
		SalePrice:       decimal.NewFromInt(1000),
		ListedFractions: decimal.NewFromInt(500),
		MinFraction:     decimal.NewFromInt(10),
	}
	assert.NoError(t, valid.Validate())

	zeroOwner := valid
	zeroOwner.Owner = Address{}
	assert.ErrorIs(t, zeroOwner.Validate(), ErrZeroAddress)

	zeroPrice := valid
	zeroPrice.SalePrice = decimal.Zero
	assert.ErrorIs(t, zeroPrice.Validate(), ErrZeroAmount)

	zeroMin := valid
	zeroMin.MinFraction = decimal.Zero
	assert.ErrorIs(t, zeroMin.Validate(), ErrInvalidListing)

	minAboveListed := valid
	minAboveListed.MinFraction = decimal.NewFromInt(501)
	assert.ErrorIs(t, minAboveListed.Validate(), ErrInvalidListing)
}

func TestHexToAddress(t *testing.T) {
	addr, err := HexToAddress("0x00000000000000000000000000000000000000ff")
	assert.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000ff", addr.Hex())
	assert.False(t, addr.IsZero())

	zero, err := HexToAddress("0x0000000000000000000000000000000000000000")
	assert.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = HexToAddress("0x1234")
	assert.Error(t, err)

	_, err = HexToAddress("zz")
	assert.Error(t, err)
}
