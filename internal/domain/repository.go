package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AssetRepository owns AssetPosition metadata and first-purchase records.
type AssetRepository interface {
	// Get retrieves an asset position, ErrAssetNotFound when absent.
	Get(ctx context.Context, key AssetKey) (*AssetPosition, error)

	// Put stores or replaces an asset position.
	Put(ctx context.Context, asset *AssetPosition) error

	// Delete removes an asset position at end of life (zero outstanding supply).
	Delete(ctx context.Context, key AssetKey) error

	// PurchaseDate returns the first-purchase timestamp, zero when the lot
	// was never purchased.
	PurchaseDate(ctx context.Context, key AssetKey) (time.Time, error)

	// SetPurchaseDate stamps the first-purchase timestamp.
	SetPurchaseDate(ctx context.Context, key AssetKey, at time.Time) error
}

// ListingRepository owns active sale offers, keyed by (mainId, subId, owner).
type ListingRepository interface {
	// Get retrieves an owner's listing, ErrListingNotFound when absent.
	Get(ctx context.Context, key AssetKey, owner Address) (*Listing, error)

	// Put stores or overwrites an owner's listing.
	Put(ctx context.Context, listing *Listing) error

	// Delete removes an owner's listing, ErrListingNotFound when absent.
	Delete(ctx context.Context, key AssetKey, owner Address) error
}

// FeeRepository owns per-asset fee overrides.
type FeeRepository interface {
	// Get retrieves the override for a key; (nil, nil) when none is stored.
	Get(ctx context.Context, key AssetKey) (*FeeOverride, error)

	// Put stores or replaces an override.
	Put(ctx context.Context, override *FeeOverride) error
}

// NonceRepository owns the per-signer counter-offer nonces. Nonces only ever
// increase and each value is consumed at most once.
type NonceRepository interface {
	// Current returns the next unconsumed nonce for a signer.
	Current(ctx context.Context, signer Address) (uint64, error)

	// Consume advances the signer's nonce by one and returns the value that
	// was consumed.
	Consume(ctx context.Context, signer Address) (uint64, error)
}

// FractionLedger is the external fractional-ownership balance ledger. The
// engine reads and moves balances through it but does not own it.
type FractionLedger interface {
	BalanceOf(ctx context.Context, owner Address, key AssetKey) (decimal.Decimal, error)
	TotalSupply(ctx context.Context, key AssetKey) (decimal.Decimal, error)
	Mint(ctx context.Context, owner Address, key AssetKey, amount decimal.Decimal) error
	Burn(ctx context.Context, owner Address, key AssetKey, amount decimal.Decimal) error
	Transfer(ctx context.Context, from, to Address, key AssetKey, amount decimal.Decimal) error
}

// PaymentToken is the settlement-currency collaborator.
type PaymentToken interface {
	BalanceOf(ctx context.Context, owner Address) (decimal.Decimal, error)
	TransferFrom(ctx context.Context, from, to Address, amount decimal.Decimal) error
}

// PaymentRegistry resolves a settlement currency identifier to its token.
type PaymentRegistry interface {
	// Token returns the payment token for a currency, ErrUnsupportedCurrency
	// when the currency is not registered.
	Token(currency string) (PaymentToken, error)
}

// TreasurySettings holds the two globally shared payout accounts. Operations
// read them at call time; the values are never cached across calls.
type TreasurySettings interface {
	Treasury() Address
	FeeSink() Address
	SetTreasury(addr Address) error
	SetFeeSink(addr Address) error
}

// Atomic runs fn as one all-or-nothing unit of work: if fn returns an error,
// every store and ledger mutation made inside it is rolled back and no
// partial state is ever observable.
type Atomic interface {
	Execute(ctx context.Context, fn func() error) error
}

// OriginatorHook lets an asset originator observe the moment a first
// fractional sale converts inventory into a buyer-owned sub-lot.
type OriginatorHook interface {
	OnSubIDCreation(ctx context.Context, buyer Address, mainID string, fractions decimal.Decimal)
}
