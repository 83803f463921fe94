package marketplace

import (
	"context"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fracta-fi/fracta-backend/internal/adapter/ledger"
	"github.com/fracta-fi/fracta-backend/internal/adapter/repository/memory"
	"github.com/fracta-fi/fracta-backend/internal/domain"
	"github.com/fracta-fi/fracta-backend/internal/usecase/fees"
	"github.com/fracta-fi/fracta-backend/internal/usecase/offer"
)

var (
	treasury = domain.Address{0xb1}
	feeSink  = domain.Address{0xc1}
	buyer    = domain.Address{0x10}
	buyer2   = domain.Address{0x20}
	assetKey = domain.AssetKey{Main: "1", Sub: "0"}
)

// MockHook is a mock implementation of domain.OriginatorHook for testing.
type MockHook struct {
	mock.Mock
}

func (m *MockHook) OnSubIDCreation(ctx context.Context, buyer domain.Address, mainID string, fractions decimal.Decimal) {
	m.Called(ctx, buyer, mainID, fractions)
}

type fixture struct {
	service   *Service
	assets    *memory.AssetStore
	listings  *memory.ListingStore
	ledger    *ledger.Ledger
	token     *ledger.Token
	nonces    *memory.NonceStore
	events    *memory.EventLog
	hook      *MockHook
	sellerKey *secp256k1.PrivateKey
	seller    domain.Address
	start     time.Time
	now       time.Time
}

// newFixture builds a lot with price 10_000_000 (6-decimal units), 10000
// fractions, 10.00% APR, due 7_890_000s from the fixed start. The seller is
// the initial owner and holds the whole supply; default fees are 1%/2%.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	sellerKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	seller := offer.PubKeyAddress(sellerKey.PubKey())

	assets := memory.NewAssetStore()
	listings := memory.NewListingStore()
	feeStore := memory.NewFeeStore()
	nonces := memory.NewNonceStore()
	fractions := ledger.NewLedger()
	token := ledger.NewToken("USDC")
	payments := ledger.NewRegistry()
	payments.Register("USDC", token)
	settings := memory.NewTreasuryStore(treasury, feeSink)
	events := memory.NewEventLog()
	atomic := memory.NewAtomic(assets, listings, feeStore, nonces, fractions, token)

	access := memory.NewAccessRegistry(domain.Address{0xad})
	feeService, err := fees.NewService(access, feeStore, 100, 200)
	require.NoError(t, err)

	hook := &MockHook{}
	f := &fixture{
		assets:    assets,
		listings:  listings,
		ledger:    fractions,
		token:     token,
		nonces:    nonces,
		events:    events,
		hook:      hook,
		sellerKey: sellerKey,
		seller:    seller,
		start:     start,
		now:       start,
	}
	f.service = NewService(Config{
		Assets:      assets,
		Listings:    listings,
		Fees:        feeService,
		Ledger:      fractions,
		Payments:    payments,
		Settings:    settings,
		Nonces:      nonces,
		Events:      events,
		Atomic:      atomic,
		Hook:        hook,
		OfferDomain: offer.Domain{Name: "fracta-marketplace", Version: "1", Origin: "test-origin"},
	})
	f.service.WithClock(func() time.Time { return f.now })

	require.NoError(t, assets.Put(ctx, &domain.AssetPosition{
		Key:                assetKey,
		Price:              decimal.NewFromInt(10_000_000),
		DueDate:            start.Add(7_890_000 * time.Second),
		RewardAPR:          1000,
		Fractions:          decimal.NewFromInt(10000),
		SettlementCurrency: "USDC",
		InitialOwner:       seller,
	}))
	require.NoError(t, fractions.Mint(ctx, seller, assetKey, decimal.NewFromInt(10000)))
	token.Credit(buyer, decimal.NewFromInt(100_000_000))
	token.Credit(buyer2, decimal.NewFromInt(100_000_000))
	return f
}

func (f *fixture) list(t *testing.T, qty, min int64) {
	t.Helper()
	err := f.service.List(context.Background(), f.seller, assetKey,
		decimal.NewFromInt(1000), decimal.NewFromInt(qty), decimal.NewFromInt(min))
	require.NoError(t, err)
}

func TestList_StoresListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)

	listing, err := f.listings.Get(ctx, assetKey, f.seller)
	require.NoError(t, err)
	assert.Equal(t, "1000", listing.SalePrice.String())
	assert.Equal(t, "1000", listing.ListedFractions.String())

	evs := f.events.All()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventListed, evs[0].Kind)
}

func TestList_OverwritesPriorListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.list(t, 500, 5)

	listing, err := f.listings.Get(ctx, assetKey, f.seller)
	require.NoError(t, err)
	assert.Equal(t, "500", listing.ListedFractions.String())
	assert.Equal(t, "5", listing.MinFraction.String())
}

func TestList_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// More than the seller's ledger balance.
	err := f.service.List(ctx, f.seller, assetKey, decimal.NewFromInt(1000), decimal.NewFromInt(10001), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Zero minimum fraction.
	err = f.service.List(ctx, f.seller, assetKey, decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidListing)

	// Minimum above the listed quantity.
	err = f.service.List(ctx, f.seller, assetKey, decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(101))
	assert.ErrorIs(t, err, domain.ErrInvalidListing)
}

func TestUnlist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	require.NoError(t, f.service.Unlist(ctx, f.seller, assetKey))

	_, err := f.listings.Get(ctx, assetKey, f.seller)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)

	// Unlisting again reverts.
	assert.ErrorIs(t, f.service.Unlist(ctx, f.seller, assetKey), domain.ErrListingNotFound)
}

func TestBuy_FirstSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.hook.On("OnSubIDCreation", mock.Anything, buyer, assetKey.Main, decimal.NewFromInt(10000)).Once()

	require.NoError(t, f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(1000), f.seller))

	// Fractions moved.
	balance, err := f.ledger.BalanceOf(ctx, buyer, assetKey)
	require.NoError(t, err)
	assert.Equal(t, "1000", balance.String())

	// Seller received the principal: 1000 fractions * 1000 per fraction.
	sellerFunds, err := f.token.BalanceOf(ctx, f.seller)
	require.NoError(t, err)
	assert.Equal(t, "1000000", sellerFunds.String())

	// Fee sink received the initial fee tier: 1% of 1_000_000.
	feeFunds, err := f.token.BalanceOf(ctx, feeSink)
	require.NoError(t, err)
	assert.Equal(t, "10000", feeFunds.String())

	// First purchase stamped and the exhausted listing deleted.
	purchased, err := f.assets.PurchaseDate(ctx, assetKey)
	require.NoError(t, err)
	assert.Equal(t, f.start, purchased)
	_, err = f.listings.Get(ctx, assetKey, f.seller)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)

	f.hook.AssertExpectations(t)
}

func TestBuy_ListingMonotonicity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.hook.On("OnSubIDCreation", mock.Anything, buyer, assetKey.Main, mock.Anything).Once()

	require.NoError(t, f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(400), f.seller))
	listing, err := f.listings.Get(ctx, assetKey, f.seller)
	require.NoError(t, err)
	assert.Equal(t, "600", listing.ListedFractions.String())

	require.NoError(t, f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(600), f.seller))
	_, err = f.listings.Get(ctx, assetKey, f.seller)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestBuy_SecondPurchaseKeepsPurchaseDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.hook.On("OnSubIDCreation", mock.Anything, buyer, assetKey.Main, mock.Anything).Once()

	require.NoError(t, f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(400), f.seller))
	first, err := f.assets.PurchaseDate(ctx, assetKey)
	require.NoError(t, err)

	f.now = f.start.Add(time.Hour)
	require.NoError(t, f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(400), f.seller))
	second, err := f.assets.PurchaseDate(ctx, assetKey)
	require.NoError(t, err)

	// The hook fires once and the stamp never moves.
	assert.Equal(t, first, second)
	f.hook.AssertNumberOfCalls(t, "OnSubIDCreation", 1)
}

func TestBuy_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 10)

	err := f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(5), f.seller)
	assert.ErrorIs(t, err, domain.ErrBelowMinFraction)

	err = f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(1001), f.seller)
	assert.ErrorIs(t, err, domain.ErrExceedsListed)

	err = f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(100), buyer2)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)

	// Matured inventory cannot be bought.
	f.now = f.start.Add(7_890_001 * time.Second)
	err = f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(100), f.seller)
	assert.ErrorIs(t, err, domain.ErrDueDatePassed)
}

func TestBuy_StaleListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	// The seller moves fractions away after listing; the listing is stale.
	require.NoError(t, f.ledger.Transfer(ctx, f.seller, buyer2, assetKey, decimal.NewFromInt(9500)))

	err := f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(1000), f.seller)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestBuy_FeeTierSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.hook.On("OnSubIDCreation", mock.Anything, buyer, assetKey.Main, mock.Anything).Once()
	require.NoError(t, f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(1000), f.seller))

	feeAfterInitial, err := f.token.BalanceOf(ctx, feeSink)
	require.NoError(t, err)
	assert.Equal(t, "10000", feeAfterInitial.String()) // 1% initial tier

	// Resale by a non-initial owner charges the buying tier (2%).
	err = f.service.List(ctx, buyer, assetKey, decimal.NewFromInt(1000), decimal.NewFromInt(500), decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NoError(t, f.service.Buy(ctx, buyer2, assetKey, decimal.NewFromInt(500), buyer))

	feeAfterResale, err := f.token.BalanceOf(ctx, feeSink)
	require.NoError(t, err)
	// 10_000 + 2% of 500_000.
	assert.Equal(t, "20000", feeAfterResale.String())
}

func TestBuy_PaymentFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	broke := domain.Address{0x99}

	before := snapshotState(t, f)
	err := f.service.Buy(ctx, broke, assetKey, decimal.NewFromInt(1000), f.seller)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, before, snapshotState(t, f))

	// The listing decrement and purchase stamp were rolled back too.
	listing, err := f.listings.Get(ctx, assetKey, f.seller)
	require.NoError(t, err)
	assert.Equal(t, "1000", listing.ListedFractions.String())
	purchased, err := f.assets.PurchaseDate(ctx, assetKey)
	require.NoError(t, err)
	assert.True(t, purchased.IsZero())
}

func TestBatchBuy_Parity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	before := snapshotState(t, f)

	err := f.service.BatchBuy(ctx, buyer,
		[]domain.AssetKey{assetKey, assetKey},
		[]decimal.Decimal{decimal.NewFromInt(10)},
		[]domain.Address{f.seller, f.seller},
	)
	assert.ErrorIs(t, err, domain.ErrNoArrayParity)
	assert.Equal(t, before, snapshotState(t, f))
}

func TestBatchBuy_SizeCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	n := domain.MaxBatchSize + 1
	keys := make([]domain.AssetKey, n)
	quantities := make([]decimal.Decimal, n)
	owners := make([]domain.Address, n)
	for i := 0; i < n; i++ {
		keys[i] = assetKey
		quantities[i] = decimal.NewFromInt(1)
		owners[i] = f.seller
	}
	err := f.service.BatchBuy(ctx, buyer, keys, quantities, owners)
	assert.ErrorIs(t, err, domain.ErrBatchTooLarge)
}

func TestBatchBuy_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	before := snapshotState(t, f)

	// Second element exceeds the remaining listed quantity: the whole batch
	// rolls back, including the first element's transfers.
	err := f.service.BatchBuy(ctx, buyer,
		[]domain.AssetKey{assetKey, assetKey},
		[]decimal.Decimal{decimal.NewFromInt(900), decimal.NewFromInt(200)},
		[]domain.Address{f.seller, f.seller},
	)
	assert.ErrorIs(t, err, domain.ErrExceedsListed)
	assert.Equal(t, before, snapshotState(t, f))
}

func TestBatchBuy_RollbackSkipsFirstSaleHook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.hook.On("OnSubIDCreation", mock.Anything, buyer, assetKey.Main, mock.Anything)

	err := f.service.BatchBuy(ctx, buyer,
		[]domain.AssetKey{assetKey, assetKey},
		[]decimal.Decimal{decimal.NewFromInt(900), decimal.NewFromInt(200)},
		[]domain.Address{f.seller, f.seller},
	)
	assert.ErrorIs(t, err, domain.ErrExceedsListed)

	// The purchase stamp rolled back with the stores; the originator must
	// not have been notified of a sale that never committed.
	purchased, err := f.assets.PurchaseDate(ctx, assetKey)
	require.NoError(t, err)
	assert.True(t, purchased.IsZero())
	f.hook.AssertNumberOfCalls(t, "OnSubIDCreation", 0)

	// The retry is still the first sale and notifies exactly once.
	err = f.service.BatchBuy(ctx, buyer,
		[]domain.AssetKey{assetKey, assetKey},
		[]decimal.Decimal{decimal.NewFromInt(900), decimal.NewFromInt(100)},
		[]domain.Address{f.seller, f.seller},
	)
	require.NoError(t, err)
	f.hook.AssertNumberOfCalls(t, "OnSubIDCreation", 1)
}

func TestBatchBuy_Commit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.hook.On("OnSubIDCreation", mock.Anything, buyer, assetKey.Main, mock.Anything).Once()

	err := f.service.BatchBuy(ctx, buyer,
		[]domain.AssetKey{assetKey, assetKey},
		[]decimal.Decimal{decimal.NewFromInt(600), decimal.NewFromInt(400)},
		[]domain.Address{f.seller, f.seller},
	)
	require.NoError(t, err)

	balance, err := f.ledger.BalanceOf(ctx, buyer, assetKey)
	require.NoError(t, err)
	assert.Equal(t, "1000", balance.String())
}

func TestConservation_AcrossTransfers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.hook.On("OnSubIDCreation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.NoError(t, f.service.Buy(ctx, buyer, assetKey, decimal.NewFromInt(1000), f.seller))

	supply, err := f.ledger.TotalSupply(ctx, assetKey)
	require.NoError(t, err)
	assert.Equal(t, "10000", supply.String())

	sellerBal, _ := f.ledger.BalanceOf(ctx, f.seller, assetKey)
	buyerBal, _ := f.ledger.BalanceOf(ctx, buyer, assetKey)
	assert.Equal(t, "10000", sellerBal.Add(buyerBal).String())
}

func TestCounterOffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.hook.On("OnSubIDCreation", mock.Anything, buyer, assetKey.Main, mock.Anything).Once()

	o := offer.CounterOffer{
		Owner:      f.seller,
		Offeror:    buyer,
		OfferPrice: decimal.NewFromInt(950),
		Key:        assetKey,
		Fractions:  decimal.NewFromInt(500),
		Nonce:      0,
		Deadline:   f.start.Add(time.Hour).Unix(),
	}
	sig := offer.Sign(f.sellerKey, f.service.OfferDomain.Digest(o))

	require.NoError(t, f.service.CounterOffer(ctx, buyer, o, sig))

	// Purchase executed at the negotiated price: 500 * 950.
	sellerFunds, err := f.token.BalanceOf(ctx, f.seller)
	require.NoError(t, err)
	assert.Equal(t, "475000", sellerFunds.String())

	balance, err := f.ledger.BalanceOf(ctx, buyer, assetKey)
	require.NoError(t, err)
	assert.Equal(t, "500", balance.String())

	nonce, err := f.nonces.Current(ctx, f.seller)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestCounterOffer_Replay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	f.hook.On("OnSubIDCreation", mock.Anything, buyer, assetKey.Main, mock.Anything).Once()

	o := offer.CounterOffer{
		Owner:      f.seller,
		Offeror:    buyer,
		OfferPrice: decimal.NewFromInt(950),
		Key:        assetKey,
		Fractions:  decimal.NewFromInt(100),
		Nonce:      0,
		Deadline:   f.start.Add(time.Hour).Unix(),
	}
	sig := offer.Sign(f.sellerKey, f.service.OfferDomain.Digest(o))

	require.NoError(t, f.service.CounterOffer(ctx, buyer, o, sig))

	// The consumed nonce no longer matches the signature.
	err := f.service.CounterOffer(ctx, buyer, o, sig)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestCounterOffer_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.list(t, 1000, 1)
	o := offer.CounterOffer{
		Owner:      f.seller,
		Offeror:    buyer,
		OfferPrice: decimal.NewFromInt(950),
		Key:        assetKey,
		Fractions:  decimal.NewFromInt(100),
		Nonce:      0,
		Deadline:   f.start.Add(time.Hour).Unix(),
	}
	sig := offer.Sign(f.sellerKey, f.service.OfferDomain.Digest(o))

	// Expired deadline.
	f.now = f.start.Add(2 * time.Hour)
	assert.ErrorIs(t, f.service.CounterOffer(ctx, buyer, o, sig), domain.ErrOfferExpired)
	f.now = f.start

	// Caller is not the claimed offeror.
	assert.ErrorIs(t, f.service.CounterOffer(ctx, buyer2, o, sig), domain.ErrNotOfferor)

	// Signature from a key that is not the owner's.
	otherKey, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	badSig := offer.Sign(otherKey, f.service.OfferDomain.Digest(o))
	assert.ErrorIs(t, f.service.CounterOffer(ctx, buyer, o, badSig), domain.ErrInvalidSignature)

	// A failed verification must not consume the nonce.
	nonce, err := f.nonces.Current(ctx, f.seller)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)
}

// snapshotState captures every balance the batch tests compare before and
// after a failed call.
type stateSnapshot struct {
	sellerFractions string
	buyerFractions  string
	sellerFunds     string
	buyerFunds      string
	feeSinkFunds    string
	supply          string
}

func snapshotState(t *testing.T, f *fixture) stateSnapshot {
	t.Helper()
	ctx := context.Background()
	sellerFractions, err := f.ledger.BalanceOf(ctx, f.seller, assetKey)
	require.NoError(t, err)
	buyerFractions, err := f.ledger.BalanceOf(ctx, buyer, assetKey)
	require.NoError(t, err)
	sellerFunds, err := f.token.BalanceOf(ctx, f.seller)
	require.NoError(t, err)
	buyerFunds, err := f.token.BalanceOf(ctx, buyer)
	require.NoError(t, err)
	feeSinkFunds, err := f.token.BalanceOf(ctx, feeSink)
	require.NoError(t, err)
	supply, err := f.ledger.TotalSupply(ctx, assetKey)
	require.NoError(t, err)
	return stateSnapshot{
		sellerFractions: sellerFractions.String(),
		buyerFractions:  buyerFractions.String(),
		sellerFunds:     sellerFunds.String(),
		buyerFunds:      buyerFunds.String(),
		feeSinkFunds:    feeSinkFunds.String(),
		supply:          supply.String(),
	}
}
