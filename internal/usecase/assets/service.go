package assets

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

// CreateInput carries the parameters for minting a new lot.
type CreateInput struct {
	Key                domain.AssetKey
	Price              decimal.Decimal
	DueDate            time.Time
	RewardAPRBps       int64
	Fractions          decimal.Decimal
	SettlementCurrency string
	InitialOwner       domain.Address
}

// Service is the originator-facing asset lifecycle surface: creating a lot
// mints its full fraction supply to the initial owner. Creation requires
// that no fractions for the id pair are outstanding.
type Service struct {
	Access   domain.AccessControl
	Assets   domain.AssetRepository
	Ledger   domain.FractionLedger
	Payments domain.PaymentRegistry
	Events   domain.EventRecorder
	Atomic   domain.Atomic

	now func() time.Time
}

// NewService creates an asset lifecycle service.
func NewService(access domain.AccessControl, assetRepo domain.AssetRepository, ledger domain.FractionLedger, payments domain.PaymentRegistry, events domain.EventRecorder, atomic domain.Atomic) *Service {
	return &Service{
		Access:   access,
		Assets:   assetRepo,
		Ledger:   ledger,
		Payments: payments,
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

// Create mints a new lot and its fraction supply.
func (s *Service) Create(ctx context.Context, actor domain.Address, input CreateInput) error {
	if err := s.Access.Require(actor, domain.RoleAssetManager); err != nil {
		return err
	}
	position := &domain.AssetPosition{
		Key:                input.Key,
		Price:              input.Price,
		DueDate:            input.DueDate,
		RewardAPR:          input.RewardAPRBps,
		Fractions:          input.Fractions,
		SettlementCurrency: input.SettlementCurrency,
		InitialOwner:       input.InitialOwner,
	}
	if err := position.Validate(); err != nil {
		return err
	}
	if _, err := s.Payments.Token(input.SettlementCurrency); err != nil {
		return err
	}

	var ev domain.Event
	err := s.Atomic.Execute(ctx, func() error {
		if _, err := s.Assets.Get(ctx, input.Key); err == nil {
			return domain.ErrAssetAlreadyCreated
		} else if !errors.Is(err, domain.ErrAssetNotFound) {
			return err
		}
		supply, err := s.Ledger.TotalSupply(ctx, input.Key)
		if err != nil {
			return err
		}
		if !supply.IsZero() {
			return domain.ErrAssetAlreadyCreated
		}
		if err := s.Assets.Put(ctx, position); err != nil {
			return err
		}
		if err := s.Ledger.Mint(ctx, input.InitialOwner, input.Key, input.Fractions); err != nil {
			return err
		}
		ev = domain.Event{
			ID:        uuid.New(),
			Kind:      domain.EventAssetCreated,
			Key:       input.Key,
			Actor:     actor,
			Amount:    input.Price,
			Fractions: input.Fractions,
			At:        s.now(),
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.Events.Record(ctx, ev); err != nil {
		zap.L().Warn("event record failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
	zap.L().Info("asset created",
		zap.String("asset", input.Key.String()),
		zap.String("price", input.Price.String()),
		zap.String("fractions", input.Fractions.String()),
		zap.Int64("aprBps", input.RewardAPRBps),
	)
	return nil
}

// Info returns the asset position for a key. A retired or never-created lot
// yields the zero record.
func (s *Service) Info(ctx context.Context, key domain.AssetKey) (domain.AssetPosition, error) {
	position, err := s.Assets.Get(ctx, key)
	if errors.Is(err, domain.ErrAssetNotFound) {
		return domain.AssetPosition{}, nil
	}
	if err != nil {
		return domain.AssetPosition{}, err
	}
	return *position, nil
}
