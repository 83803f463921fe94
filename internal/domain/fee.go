package domain

// FeeOverride carries per-asset fee tiers in basis points. A nil field means
// "unset, fall back to the default"; an explicit zero is a real zero-percent
// override. The pointer is the presence flag that removes the 0-vs-unset
// ambiguity of a bare integer encoding.
type FeeOverride struct {
	Key           AssetKey
	InitialFeeBps *int64 // charged when buying from the initial owner
	BuyingFeeBps  *int64 // charged on every resale
}

// ValidateBps rejects any fee above 100%.
func ValidateBps(bps int64) error {
	if bps < 0 || bps > BpsDenominator {
		return ErrInvalidFee
	}
	return nil
}
