package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// SecondsPerYear is the fixed 360-day year convention used by every reward
// and settlement calculation. Not the calendar year.
const SecondsPerYear int64 = 360 * 86400

// BpsDenominator is the basis-point scale: 10000 bps == 100%.
const BpsDenominator int64 = 10000

// MaxBatchSize bounds every batch operation. Exceeding it is a hard reject,
// not a truncation.
const MaxBatchSize = 30

// AssetKey identifies one divisible lot: mainId picks the asset, subId picks
// the fractional-ownership cohort. Both are 256-bit integers, stored in
// canonical base-10 form so the key is usable as a map key.
type AssetKey struct {
	Main string
	Sub  string
}

// NewAssetKey builds an AssetKey from big integer identifiers.
func NewAssetKey(main, sub *big.Int) (AssetKey, error) {
	if main == nil || sub == nil {
		return AssetKey{}, fmt.Errorf("asset key ids cannot be nil")
	}
	if main.Sign() < 0 || sub.Sign() < 0 {
		return AssetKey{}, fmt.Errorf("asset key ids cannot be negative")
	}
	return AssetKey{Main: main.String(), Sub: sub.String()}, nil
}

// ParseAssetKey builds an AssetKey from base-10 string identifiers.
func ParseAssetKey(main, sub string) (AssetKey, error) {
	m, ok := new(big.Int).SetString(main, 10)
	if !ok {
		return AssetKey{}, fmt.Errorf("invalid main id %q", main)
	}
	s, ok := new(big.Int).SetString(sub, 10)
	if !ok {
		return AssetKey{}, fmt.Errorf("invalid sub id %q", sub)
	}
	return NewAssetKey(m, s)
}

// MainID returns the main identifier as a big integer.
func (k AssetKey) MainID() *big.Int {
	v, _ := new(big.Int).SetString(k.Main, 10)
	return v
}

// SubID returns the sub identifier as a big integer.
func (k AssetKey) SubID() *big.Int {
	v, _ := new(big.Int).SetString(k.Sub, 10)
	return v
}

func (k AssetKey) String() string {
	return k.Main + "/" + k.Sub
}

// AssetPosition is the metadata record for one lot. Amounts are
// integer-valued decimals in the settlement currency's smallest unit.
//
// Fractions is the total originally minted for the lot and stays fixed for
// its whole life: it is the denominator for proportional math, not a live
// supply counter. The live counter is FractionLedger.TotalSupply.
type AssetPosition struct {
	Key                AssetKey
	Price              decimal.Decimal // total face value of the lot
	DueDate            time.Time
	RewardAPR          int64 // annualized rate in basis points, 0 for non-interest-bearing lots
	Fractions          decimal.Decimal // total fractions minted, fixed at creation
	SettlementCurrency string
	InitialOwner       Address // the originator; sales out of this account charge the initial fee
}

// Validate ensures the position adheres to domain rules.
func (a *AssetPosition) Validate() error {
	if a.InitialOwner.IsZero() {
		return ErrZeroAddress
	}
	if a.Price.LessThanOrEqual(decimal.Zero) || a.Fractions.LessThanOrEqual(decimal.Zero) {
		return ErrZeroAmount
	}
	if a.RewardAPR < 0 || a.RewardAPR > BpsDenominator {
		return ErrInvalidFee
	}
	if a.DueDate.IsZero() {
		return fmt.Errorf("asset due date must be set")
	}
	if a.SettlementCurrency == "" {
		return ErrUnsupportedCurrency
	}
	return nil
}

// PurchaseRecord marks when the first transfer out of originator inventory
// happened for a lot. A zero Date means "never purchased" and gates both
// reward accrual and due-date policy.
type PurchaseRecord struct {
	Key  AssetKey
	Date time.Time
}
