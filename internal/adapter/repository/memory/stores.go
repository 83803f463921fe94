package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

// listingKey is the composite (mainId, subId, owner) map key.
type listingKey struct {
	key   domain.AssetKey
	owner domain.Address
}

// AssetStore is the in-memory AssetRepository.
type AssetStore struct {
	mu        sync.RWMutex
	assets    map[domain.AssetKey]domain.AssetPosition
	purchases map[domain.AssetKey]time.Time
}

// NewAssetStore creates an empty asset store.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		assets:    make(map[domain.AssetKey]domain.AssetPosition),
		purchases: make(map[domain.AssetKey]time.Time),
	}
}

func (s *AssetStore) Get(_ context.Context, key domain.AssetKey) (*domain.AssetPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[key]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	return &a, nil
}

func (s *AssetStore) Put(_ context.Context, asset *domain.AssetPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset.Key] = *asset
	return nil
}

func (s *AssetStore) Delete(_ context.Context, key domain.AssetKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, key)
	delete(s.purchases, key)
	return nil
}

func (s *AssetStore) PurchaseDate(_ context.Context, key domain.AssetKey) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.purchases[key], nil
}

func (s *AssetStore) SetPurchaseDate(_ context.Context, key domain.AssetKey, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases[key] = at
	return nil
}

type assetSnapshot struct {
	assets    map[domain.AssetKey]domain.AssetPosition
	purchases map[domain.AssetKey]time.Time
}

func (s *AssetStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := assetSnapshot{
		assets:    make(map[domain.AssetKey]domain.AssetPosition, len(s.assets)),
		purchases: make(map[domain.AssetKey]time.Time, len(s.purchases)),
	}
	for k, v := range s.assets {
		snap.assets[k] = v
	}
	for k, v := range s.purchases {
		snap.purchases[k] = v
	}
	return snap
}

func (s *AssetStore) Restore(state any) {
	snap := state.(assetSnapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = snap.assets
	s.purchases = snap.purchases
}

// ListingStore is the in-memory ListingRepository. Entries with zero
// remaining fractions are deleted, never stored as zero-value records.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[listingKey]domain.Listing
}

// NewListingStore creates an empty listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{listings: make(map[listingKey]domain.Listing)}
}

func (s *ListingStore) Get(_ context.Context, key domain.AssetKey, owner domain.Address) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[listingKey{key: key, owner: owner}]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return &l, nil
}

func (s *ListingStore) Put(_ context.Context, listing *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listingKey{key: listing.Key, owner: listing.Owner}] = *listing
	return nil
}

func (s *ListingStore) Delete(_ context.Context, key domain.AssetKey, owner domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := listingKey{key: key, owner: owner}
	if _, ok := s.listings[k]; !ok {
		return domain.ErrListingNotFound
	}
	delete(s.listings, k)
	return nil
}

func (s *ListingStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[listingKey]domain.Listing, len(s.listings))
	for k, v := range s.listings {
		snap[k] = v
	}
	return snap
}

func (s *ListingStore) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = state.(map[listingKey]domain.Listing)
}

// FeeStore is the in-memory FeeRepository.
type FeeStore struct {
	mu        sync.RWMutex
	overrides map[domain.AssetKey]domain.FeeOverride
}

// NewFeeStore creates an empty fee override store.
func NewFeeStore() *FeeStore {
	return &FeeStore{overrides: make(map[domain.AssetKey]domain.FeeOverride)}
}

func (s *FeeStore) Get(_ context.Context, key domain.AssetKey) (*domain.FeeOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[key]
	if !ok {
		return nil, nil
	}
	cp := copyOverride(o)
	return &cp, nil
}

func (s *FeeStore) Put(_ context.Context, override *domain.FeeOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[override.Key] = copyOverride(*override)
	return nil
}

func copyOverride(o domain.FeeOverride) domain.FeeOverride {
	cp := domain.FeeOverride{Key: o.Key}
	if o.InitialFeeBps != nil {
		v := *o.InitialFeeBps
		cp.InitialFeeBps = &v
	}
	if o.BuyingFeeBps != nil {
		v := *o.BuyingFeeBps
		cp.BuyingFeeBps = &v
	}
	return cp
}

func (s *FeeStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[domain.AssetKey]domain.FeeOverride, len(s.overrides))
	for k, v := range s.overrides {
		snap[k] = copyOverride(v)
	}
	return snap
}

func (s *FeeStore) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = state.(map[domain.AssetKey]domain.FeeOverride)
}

// NonceStore is the in-memory NonceRepository.
type NonceStore struct {
	mu     sync.Mutex
	nonces map[domain.Address]uint64
}

// NewNonceStore creates an empty nonce store.
func NewNonceStore() *NonceStore {
	return &NonceStore{nonces: make(map[domain.Address]uint64)}
}

func (s *NonceStore) Current(_ context.Context, signer domain.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces[signer], nil
}

func (s *NonceStore) Consume(_ context.Context, signer domain.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nonces[signer]
	s.nonces[signer] = n + 1
	return n, nil
}

func (s *NonceStore) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[domain.Address]uint64, len(s.nonces))
	for k, v := range s.nonces {
		snap[k] = v
	}
	return snap
}

func (s *NonceStore) Restore(state any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces = state.(map[domain.Address]uint64)
}
