package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fracta-fi/fracta-backend/internal/domain"
	"github.com/fracta-fi/fracta-backend/internal/usecase/offer"
)

// FeeResolver supplies the fee tiers for an asset in basis points.
type FeeResolver interface {
	ResolveFees(ctx context.Context, key domain.AssetKey) (initialBps, buyingBps int64, err error)
}

// Service executes the marketplace operations: list, unlist, buy, their
// batch variants, and signed counter-offers. Every operation runs as one
// atomic unit of work; units are serialized, which is also the re-entrancy
// guard around the external ledger and payment calls.
type Service struct {
	Assets   domain.AssetRepository
	Listings domain.ListingRepository
	Fees     FeeResolver
	Ledger   domain.FractionLedger
	Payments domain.PaymentRegistry
	Settings domain.TreasurySettings
	Nonces   domain.NonceRepository
	Events   domain.EventRecorder
	Atomic   domain.Atomic

	// Hook is optional originator-side bookkeeping for first sales.
	Hook domain.OriginatorHook

	// OfferDomain scopes counter-offer signatures to this deployment.
	OfferDomain offer.Domain

	now func() time.Time
}

// Config carries the collaborators for NewService.
type Config struct {
	Assets      domain.AssetRepository
	Listings    domain.ListingRepository
	Fees        FeeResolver
	Ledger      domain.FractionLedger
	Payments    domain.PaymentRegistry
	Settings    domain.TreasurySettings
	Nonces      domain.NonceRepository
	Events      domain.EventRecorder
	Atomic      domain.Atomic
	Hook        domain.OriginatorHook
	OfferDomain offer.Domain
}

// NewService creates a marketplace service using the wall clock.
func NewService(cfg Config) *Service {
	return &Service{
		Assets:      cfg.Assets,
		Listings:    cfg.Listings,
		Fees:        cfg.Fees,
		Ledger:      cfg.Ledger,
		Payments:    cfg.Payments,
		Settings:    cfg.Settings,
		Nonces:      cfg.Nonces,
		Events:      cfg.Events,
		Atomic:      cfg.Atomic,
		Hook:        cfg.Hook,
		OfferDomain: cfg.OfferDomain,
		now:         time.Now,
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// List creates or overwrites the caller's sale offer for an asset.
func (s *Service) List(ctx context.Context, caller domain.Address, key domain.AssetKey, salePrice, listedFractions, minFraction decimal.Decimal) error {
	var ev domain.Event
	err := s.Atomic.Execute(ctx, func() error {
		var err error
		ev, err = s.listLocked(ctx, caller, key, salePrice, listedFractions, minFraction)
		return err
	})
	if err != nil {
		return err
	}
	s.record(ctx, ev)
	return nil
}

// BatchList applies List element-wise; one failing element aborts the whole
// batch.
func (s *Service) BatchList(ctx context.Context, caller domain.Address, keys []domain.AssetKey, salePrices, listedFractions, minFractions []decimal.Decimal) error {
	if err := checkBatch(len(keys), len(salePrices), len(listedFractions), len(minFractions)); err != nil {
		return err
	}
	evs := make([]domain.Event, 0, len(keys))
	err := s.Atomic.Execute(ctx, func() error {
		for i, key := range keys {
			ev, err := s.listLocked(ctx, caller, key, salePrices[i], listedFractions[i], minFractions[i])
			if err != nil {
				return err
			}
			evs = append(evs, ev)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, evs...)
	return nil
}

// Unlist deletes the caller's sale offer for an asset.
func (s *Service) Unlist(ctx context.Context, caller domain.Address, key domain.AssetKey) error {
	var ev domain.Event
	err := s.Atomic.Execute(ctx, func() error {
		var err error
		ev, err = s.unlistLocked(ctx, caller, key)
		return err
	})
	if err != nil {
		return err
	}
	s.record(ctx, ev)
	return nil
}

// BatchUnlist applies Unlist element-wise, all-or-nothing.
func (s *Service) BatchUnlist(ctx context.Context, caller domain.Address, keys []domain.AssetKey) error {
	if err := checkBatch(len(keys)); err != nil {
		return err
	}
	evs := make([]domain.Event, 0, len(keys))
	err := s.Atomic.Execute(ctx, func() error {
		for _, key := range keys {
			ev, err := s.unlistLocked(ctx, caller, key)
			if err != nil {
				return err
			}
			evs = append(evs, ev)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, evs...)
	return nil
}

// Buy purchases fractions from an owner's listing at the listed price,
// splitting payment into principal to the owner and fee to the fee sink.
func (s *Service) Buy(ctx context.Context, buyer domain.Address, key domain.AssetKey, fractionToBuy decimal.Decimal, owner domain.Address) error {
	var evs []domain.Event
	var notify func()
	err := s.Atomic.Execute(ctx, func() error {
		var err error
		evs, notify, err = s.buyLocked(ctx, buyer, key, fractionToBuy, owner, nil)
		return err
	})
	if err != nil {
		return err
	}
	if notify != nil {
		notify()
	}
	s.record(ctx, evs...)
	return nil
}

// BatchBuy applies Buy element-wise; a failing element rolls the whole
// batch back so callers reconciling off-chain books never see a partial
// commit.
func (s *Service) BatchBuy(ctx context.Context, buyer domain.Address, keys []domain.AssetKey, fractions []decimal.Decimal, owners []domain.Address) error {
	if err := checkBatch(len(keys), len(fractions), len(owners)); err != nil {
		return err
	}
	evs := make([]domain.Event, 0, len(keys))
	var notifies []func()
	err := s.Atomic.Execute(ctx, func() error {
		for i, key := range keys {
			out, notify, err := s.buyLocked(ctx, buyer, key, fractions[i], owners[i], nil)
			if err != nil {
				return err
			}
			evs = append(evs, out...)
			if notify != nil {
				notifies = append(notifies, notify)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, notify := range notifies {
		notify()
	}
	s.record(ctx, evs...)
	return nil
}

// CounterOffer executes a purchase authorized off-chain by the listing
// owner at a negotiated price. The owner's signature is checked against the
// current nonce, and the nonce is consumed exactly once; a replayed
// signature no longer matches and is rejected.
func (s *Service) CounterOffer(ctx context.Context, caller domain.Address, o offer.CounterOffer, signature []byte) error {
	if s.now().Unix() > o.Deadline {
		return domain.ErrOfferExpired
	}
	if caller != o.Offeror {
		return domain.ErrNotOfferor
	}
	var evs []domain.Event
	var notify func()
	err := s.Atomic.Execute(ctx, func() error {
		nonce, err := s.Nonces.Current(ctx, o.Owner)
		if err != nil {
			return err
		}
		o.Nonce = nonce
		signer, err := offer.RecoverSigner(s.OfferDomain.Digest(o), signature)
		if err != nil {
			return err
		}
		if signer != o.Owner {
			return domain.ErrInvalidSignature
		}
		// Nonce is consumed before any external transfer leg runs.
		if _, err := s.Nonces.Consume(ctx, o.Owner); err != nil {
			return err
		}
		evs, notify, err = s.buyLocked(ctx, o.Offeror, o.Key, o.Fractions, o.Owner, &o.OfferPrice)
		return err
	})
	if err != nil {
		return err
	}
	if notify != nil {
		notify()
	}
	s.record(ctx, evs...)
	return nil
}

// Listing returns the active listing for (key, owner).
func (s *Service) Listing(ctx context.Context, key domain.AssetKey, owner domain.Address) (*domain.Listing, error) {
	return s.Listings.Get(ctx, key, owner)
}

func (s *Service) listLocked(ctx context.Context, caller domain.Address, key domain.AssetKey, salePrice, listedFractions, minFraction decimal.Decimal) (domain.Event, error) {
	listing := &domain.Listing{
		Key:             key,
		Owner:           caller,
		SalePrice:       salePrice,
		ListedFractions: listedFractions,
		MinFraction:     minFraction,
	}
	if err := listing.Validate(); err != nil {
		return domain.Event{}, err
	}
	balance, err := s.Ledger.BalanceOf(ctx, caller, key)
	if err != nil {
		return domain.Event{}, err
	}
	if listedFractions.GreaterThan(balance) {
		return domain.Event{}, domain.ErrInsufficientBalance
	}
	if err := s.Listings.Put(ctx, listing); err != nil {
		return domain.Event{}, err
	}
	return s.event(domain.EventListed, key, caller, domain.Address{}, salePrice, listedFractions), nil
}

func (s *Service) unlistLocked(ctx context.Context, caller domain.Address, key domain.AssetKey) (domain.Event, error) {
	listing, err := s.Listings.Get(ctx, key, caller)
	if err != nil {
		return domain.Event{}, err
	}
	if err := s.Listings.Delete(ctx, key, caller); err != nil {
		return domain.Event{}, err
	}
	return s.event(domain.EventUnlisted, key, caller, domain.Address{}, listing.SalePrice, listing.ListedFractions), nil
}

// buyLocked runs the single-purchase path. priceOverride substitutes the
// listed price for counter-offer executions. The returned notify closure
// carries the first-sale originator callback; callers fire it only after the
// unit of work commits, so a rolled-back batch never leaks the notification.
func (s *Service) buyLocked(ctx context.Context, buyer domain.Address, key domain.AssetKey, fractionToBuy decimal.Decimal, owner domain.Address, priceOverride *decimal.Decimal) ([]domain.Event, func(), error) {
	if buyer.IsZero() || owner.IsZero() {
		return nil, nil, domain.ErrZeroAddress
	}
	if fractionToBuy.LessThanOrEqual(decimal.Zero) {
		return nil, nil, domain.ErrZeroAmount
	}

	listing, err := s.Listings.Get(ctx, key, owner)
	if err != nil {
		return nil, nil, err
	}
	if fractionToBuy.LessThan(listing.MinFraction) {
		return nil, nil, domain.ErrBelowMinFraction
	}
	if fractionToBuy.GreaterThan(listing.ListedFractions) {
		return nil, nil, domain.ErrExceedsListed
	}
	// The listing may be stale relative to the live ledger balance.
	ownerBalance, err := s.Ledger.BalanceOf(ctx, owner, key)
	if err != nil {
		return nil, nil, err
	}
	if fractionToBuy.GreaterThan(ownerBalance) {
		return nil, nil, domain.ErrInsufficientBalance
	}
	asset, err := s.Assets.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	if now.After(asset.DueDate) {
		return nil, nil, domain.ErrDueDatePassed
	}

	salePrice := listing.SalePrice
	if priceOverride != nil {
		salePrice = *priceOverride
		if salePrice.LessThanOrEqual(decimal.Zero) {
			return nil, nil, domain.ErrZeroAmount
		}
	}
	payPrice := salePrice.Mul(fractionToBuy)

	initialBps, buyingBps, err := s.Fees.ResolveFees(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	feeBps := buyingBps
	if owner == asset.InitialOwner {
		feeBps = initialBps
	}
	fee := payPrice.Mul(decimal.NewFromInt(feeBps)).Div(decimal.NewFromInt(domain.BpsDenominator)).Floor()

	purchased, err := s.Assets.PurchaseDate(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	firstSale := purchased.IsZero()
	if firstSale {
		if err := s.Assets.SetPurchaseDate(ctx, key, now); err != nil {
			return nil, nil, err
		}
	}

	remaining := listing.ListedFractions.Sub(fractionToBuy)
	if remaining.IsZero() {
		if err := s.Listings.Delete(ctx, key, owner); err != nil {
			return nil, nil, err
		}
	} else {
		listing.ListedFractions = remaining
		if err := s.Listings.Put(ctx, listing); err != nil {
			return nil, nil, err
		}
	}

	token, err := s.Payments.Token(asset.SettlementCurrency)
	if err != nil {
		return nil, nil, err
	}
	if err := token.TransferFrom(ctx, buyer, owner, payPrice); err != nil {
		return nil, nil, err
	}
	if fee.IsPositive() {
		if err := token.TransferFrom(ctx, buyer, s.Settings.FeeSink(), fee); err != nil {
			return nil, nil, err
		}
	}
	if err := s.Ledger.Transfer(ctx, owner, buyer, key, fractionToBuy); err != nil {
		return nil, nil, err
	}

	var notify func()
	if firstSale && s.Hook != nil {
		notify = func() {
			s.Hook.OnSubIDCreation(ctx, buyer, key.Main, asset.Fractions)
		}
	}

	zap.L().Info("fractions bought",
		zap.String("asset", key.String()),
		zap.String("owner", owner.Hex()),
		zap.String("buyer", buyer.Hex()),
		zap.String("salePrice", salePrice.String()),
		zap.String("payPrice", payPrice.String()),
		zap.String("fee", fee.String()),
		zap.String("fractions", fractionToBuy.String()),
	)
	return []domain.Event{
		s.event(domain.EventBought, key, buyer, owner, payPrice, fractionToBuy),
	}, notify, nil
}

func (s *Service) event(kind domain.EventKind, key domain.AssetKey, actor, counterparty domain.Address, amount, fractions decimal.Decimal) domain.Event {
	return domain.Event{
		ID:           uuid.New(),
		Kind:         kind,
		Key:          key,
		Actor:        actor,
		Counterparty: counterparty,
		Amount:       amount,
		Fractions:    fractions,
		At:           s.now(),
	}
}

// record writes events to the recorder. The journal is an observability
// sink: a failing write is logged, never propagated.
func (s *Service) record(ctx context.Context, evs ...domain.Event) {
	for _, ev := range evs {
		if err := s.Events.Record(ctx, ev); err != nil {
			zap.L().Warn("event record failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
	}
}

func checkBatch(lengths ...int) error {
	for _, n := range lengths[1:] {
		if n != lengths[0] {
			return domain.ErrNoArrayParity
		}
	}
	if lengths[0] == 0 {
		return domain.ErrZeroAmount
	}
	if lengths[0] > domain.MaxBatchSize {
		return domain.ErrBatchTooLarge
	}
	return nil
}
