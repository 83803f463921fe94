package domain

import "github.com/shopspring/decimal"

// Listing is an active sale offer for fractions of one lot, keyed by
// (mainId, subId, owner). SalePrice is always per fraction; the lot-total
// convention from older revisions of the marketplace is not used anywhere.
type Listing struct {
	Key             AssetKey
	Owner           Address
	SalePrice       decimal.Decimal // per fraction, settlement currency smallest unit
	ListedFractions decimal.Decimal
	MinFraction     decimal.Decimal
}

// Validate ensures the listing adheres to domain rules.
// A listing with zero remaining fractions is deleted, never stored.
func (l *Listing) Validate() error {
	if l.Owner.IsZero() {
		return ErrZeroAddress
	}
	if l.SalePrice.LessThanOrEqual(decimal.Zero) {
		return ErrZeroAmount
	}
	if l.MinFraction.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidListing
	}
	if l.MinFraction.GreaterThan(l.ListedFractions) {
		return ErrInvalidListing
	}
	return nil
}
