package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

// RewardClaimer pays a holder's accrued reward share out of the treasury.
type RewardClaimer interface {
	ClaimFor(ctx context.Context, holder domain.Address, key domain.AssetKey) (decimal.Decimal, error)
}

// Service redeems matured lots: it claims any outstanding reward for the
// holder, burns the holder's fractions, and pays out the proportional
// principal from the treasury. When the last outstanding fraction is
// burned, the asset position is retired.
type Service struct {
	Assets   domain.AssetRepository
	Ledger   domain.FractionLedger
	Payments domain.PaymentRegistry
	Settings domain.TreasurySettings
	Rewards  RewardClaimer
	Events   domain.EventRecorder
	Atomic   domain.Atomic

	now func() time.Time
}

// NewService creates a settlement service using the wall clock.
func NewService(assets domain.AssetRepository, ledger domain.FractionLedger, payments domain.PaymentRegistry, settings domain.TreasurySettings, rewards RewardClaimer, events domain.EventRecorder, atomic domain.Atomic) *Service {
	return &Service{
		Assets:   assets,
		Ledger:   ledger,
		Payments: payments,
		Settings: settings,
		Rewards:  rewards,
		Events:   events,
		Atomic:   atomic,
		now:      time.Now,
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Settle redeems the owner's whole remaining position in a matured lot.
func (s *Service) Settle(ctx context.Context, key domain.AssetKey, owner domain.Address) error {
	var evs []domain.Event
	err := s.Atomic.Execute(ctx, func() error {
		var err error
		evs, err = s.settleLocked(ctx, key, owner)
		return err
	})
	if err != nil {
		return err
	}
	s.record(ctx, evs...)
	return nil
}

// BatchSettle applies Settle element-wise with strict array parity and
// all-or-nothing failure.
func (s *Service) BatchSettle(ctx context.Context, keys []domain.AssetKey, owners []domain.Address) error {
	if len(keys) != len(owners) {
		return domain.ErrNoArrayParity
	}
	if len(keys) == 0 {
		return domain.ErrZeroAmount
	}
	if len(keys) > domain.MaxBatchSize {
		return domain.ErrBatchTooLarge
	}
	evs := make([]domain.Event, 0, len(keys))
	err := s.Atomic.Execute(ctx, func() error {
		for i, key := range keys {
			out, err := s.settleLocked(ctx, key, owners[i])
			if err != nil {
				return err
			}
			evs = append(evs, out...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, evs...)
	return nil
}

func (s *Service) settleLocked(ctx context.Context, key domain.AssetKey, owner domain.Address) ([]domain.Event, error) {
	if owner.IsZero() {
		return nil, domain.ErrZeroAddress
	}
	asset, err := s.Assets.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !now.After(asset.DueDate) {
		return nil, domain.ErrDueDateNotPassed
	}
	balance, err := s.Ledger.BalanceOf(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	if balance.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInsufficientBalance
	}

	// The reward share depends on the pre-burn balance, so the claim runs
	// before any balance mutation.
	claimed, err := s.Rewards.ClaimFor(ctx, owner, key)
	if err != nil {
		return nil, err
	}

	settlePrice := asset.Price.Mul(balance).Div(asset.Fractions).Floor()
	if err := s.Ledger.Burn(ctx, owner, key, balance); err != nil {
		return nil, err
	}
	token, err := s.Payments.Token(asset.SettlementCurrency)
	if err != nil {
		return nil, err
	}
	if err := token.TransferFrom(ctx, s.Settings.Treasury(), owner, settlePrice); err != nil {
		return nil, err
	}

	evs := make([]domain.Event, 0, 3)
	if claimed.IsPositive() {
		evs = append(evs, s.event(domain.EventRewardClaimed, key, owner, s.Settings.Treasury(), claimed, decimal.Zero, now))
	}
	evs = append(evs, s.event(domain.EventSettled, key, owner, s.Settings.Treasury(), settlePrice, balance, now))

	supply, err := s.Ledger.TotalSupply(ctx, key)
	if err != nil {
		return nil, err
	}
	if supply.IsZero() {
		if err := s.Assets.Delete(ctx, key); err != nil {
			return nil, err
		}
		evs = append(evs, s.event(domain.EventAssetRetired, key, owner, domain.Address{}, decimal.Zero, decimal.Zero, now))
	}

	zap.L().Info("position settled",
		zap.String("asset", key.String()),
		zap.String("owner", owner.Hex()),
		zap.String("principal", settlePrice.String()),
		zap.String("reward", claimed.String()),
		zap.String("fractions", balance.String()),
	)
	return evs, nil
}

func (s *Service) event(kind domain.EventKind, key domain.AssetKey, actor, counterparty domain.Address, amount, fractions decimal.Decimal, at time.Time) domain.Event {
	return domain.Event{
		ID:           uuid.New(),
		Kind:         kind,
		Key:          key,
		Actor:        actor,
		Counterparty: counterparty,
		Amount:       amount,
		Fractions:    fractions,
		At:           at,
	}
}

func (s *Service) record(ctx context.Context, evs ...domain.Event) {
	for _, ev := range evs {
		if err := s.Events.Record(ctx, ev); err != nil {
			zap.L().Warn("event record failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
	}
}
