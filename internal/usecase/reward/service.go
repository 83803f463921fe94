package reward

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

// Service computes simple-interest rewards for fractional holders and pays
// accrued claims out of the treasury. Interest accrues from the lot's first
// purchase to the earlier of "now" and the due date, on a fixed 360-day
// year (domain.SecondsPerYear).
type Service struct {
	Assets   domain.AssetRepository
	Ledger   domain.FractionLedger
	Payments domain.PaymentRegistry
	Settings domain.TreasurySettings

	Now func() time.Time
}

// NewService creates a reward service using the wall clock.
func NewService(assets domain.AssetRepository, ledger domain.FractionLedger, payments domain.PaymentRegistry, settings domain.TreasurySettings) *Service {
	return &Service{
		Assets:   assets,
		Ledger:   ledger,
		Payments: payments,
		Settings: settings,
		Now:      time.Now,
	}
}

// AvailableReward returns the whole-lot reward accrued so far. Zero when the
// lot was never purchased or carries no reward rate.
func (s *Service) AvailableReward(ctx context.Context, key domain.AssetKey) (decimal.Decimal, error) {
	asset, err := s.Assets.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	purchased, err := s.Assets.PurchaseDate(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	if purchased.IsZero() {
		return decimal.Zero, nil
	}
	end := s.Now()
	if end.After(asset.DueDate) {
		end = asset.DueDate
	}
	return accrue(asset.Price, asset.RewardAPR, purchased, end), nil
}

// RemainingReward returns the reward still to accrue until the due date: a
// forward-looking estimate at the asset's nominal price, not a guarantee.
func (s *Service) RemainingReward(ctx context.Context, key domain.AssetKey) (decimal.Decimal, error) {
	asset, err := s.Assets.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	purchased, err := s.Assets.PurchaseDate(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	start := purchased
	if start.IsZero() {
		start = s.Now()
		if start.After(asset.DueDate) {
			start = asset.DueDate
		}
	}
	return accrue(asset.Price, asset.RewardAPR, start, asset.DueDate), nil
}

// ClaimFor pays the holder's proportional share of the accrued reward from
// the treasury. Callers that go on to mutate the holder's balance in the
// same unit of work must call this first: the share depends on the
// pre-mutation balance.
func (s *Service) ClaimFor(ctx context.Context, holder domain.Address, key domain.AssetKey) (decimal.Decimal, error) {
	whole, err := s.AvailableReward(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	if whole.IsZero() {
		return decimal.Zero, nil
	}
	asset, err := s.Assets.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := s.Ledger.BalanceOf(ctx, holder, key)
	if err != nil {
		return decimal.Zero, err
	}
	if balance.IsZero() {
		return decimal.Zero, nil
	}
	share := whole.Mul(balance).Div(asset.Fractions).Floor()
	if share.IsZero() {
		return decimal.Zero, nil
	}
	token, err := s.Payments.Token(asset.SettlementCurrency)
	if err != nil {
		return decimal.Zero, err
	}
	if err := token.TransferFrom(ctx, s.Settings.Treasury(), holder, share); err != nil {
		return decimal.Zero, err
	}
	zap.L().Info("reward claimed",
		zap.String("asset", key.String()),
		zap.String("holder", holder.Hex()),
		zap.String("amount", share.String()),
	)
	return share, nil
}

// accrue implements reward = price * tenure * aprBps / (10000 * SecondsPerYear),
// rounding down to the currency's smallest unit.
func accrue(price decimal.Decimal, aprBps int64, from, to time.Time) decimal.Decimal {
	if aprBps == 0 || !to.After(from) {
		return decimal.Zero
	}
	tenure := to.Unix() - from.Unix()
	return price.
		Mul(decimal.NewFromInt(tenure)).
		Mul(decimal.NewFromInt(aprBps)).
		Div(decimal.NewFromInt(domain.BpsDenominator * domain.SecondsPerYear)).
		Floor()
}
