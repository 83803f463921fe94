package fees

import (
	"context"
	"sync"

	"github.com/fracta-fi/fracta-backend/internal/domain"
)

// Service resolves and mutates marketplace fee tiers. Per-asset overrides
// fall back to the process-wide defaults; an override field left nil is
// "unset", distinct from an explicit zero-percent override.
type Service struct {
	Access domain.AccessControl
	Repo   domain.FeeRepository

	mu             sync.RWMutex
	defaultInitial int64
	defaultBuying  int64
}

// NewService creates a fee service with the given default tiers in basis
// points.
func NewService(access domain.AccessControl, repo domain.FeeRepository, defaultInitialBps, defaultBuyingBps int64) (*Service, error) {
	if err := domain.ValidateBps(defaultInitialBps); err != nil {
		return nil, err
	}
	if err := domain.ValidateBps(defaultBuyingBps); err != nil {
		return nil, err
	}
	return &Service{
		Access:         access,
		Repo:           repo,
		defaultInitial: defaultInitialBps,
		defaultBuying:  defaultBuyingBps,
	}, nil
}

// ResolveFees returns the (initial, buying) fee tiers for an asset in basis
// points, applying the per-asset override where one is set.
func (s *Service) ResolveFees(ctx context.Context, key domain.AssetKey) (int64, int64, error) {
	s.mu.RLock()
	initial, buying := s.defaultInitial, s.defaultBuying
	s.mu.RUnlock()

	override, err := s.Repo.Get(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	if override != nil {
		if override.InitialFeeBps != nil {
			initial = *override.InitialFeeBps
		}
		if override.BuyingFeeBps != nil {
			buying = *override.BuyingFeeBps
		}
	}
	return initial, buying, nil
}

// SetDefaultFees replaces the process-wide default tiers.
func (s *Service) SetDefaultFees(ctx context.Context, actor domain.Address, initialBps, buyingBps int64) error {
	if err := s.Access.Require(actor, domain.RoleFeeManager); err != nil {
		return err
	}
	if err := domain.ValidateBps(initialBps); err != nil {
		return err
	}
	if err := domain.ValidateBps(buyingBps); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultInitial = initialBps
	s.defaultBuying = buyingBps
	return nil
}

// SetInitialFee sets the per-asset initial fee override.
func (s *Service) SetInitialFee(ctx context.Context, actor domain.Address, key domain.AssetKey, bps int64) error {
	return s.setOverride(ctx, actor, key, &bps, nil)
}

// SetBuyingFee sets the per-asset buying fee override.
func (s *Service) SetBuyingFee(ctx context.Context, actor domain.Address, key domain.AssetKey, bps int64) error {
	return s.setOverride(ctx, actor, key, nil, &bps)
}

// SetAssetFees sets both per-asset overrides in one write. A nil value
// leaves that tier's override untouched; both values are validated before
// either is stored.
func (s *Service) SetAssetFees(ctx context.Context, actor domain.Address, key domain.AssetKey, initial, buying *int64) error {
	return s.setOverride(ctx, actor, key, initial, buying)
}

// BatchSetInitialFee applies SetInitialFee element-wise. Arrays must have
// equal length and at most domain.MaxBatchSize elements.
func (s *Service) BatchSetInitialFee(ctx context.Context, actor domain.Address, keys []domain.AssetKey, bps []int64) error {
	if err := checkBatch(len(keys), len(bps)); err != nil {
		return err
	}
	for i, key := range keys {
		if err := s.SetInitialFee(ctx, actor, key, bps[i]); err != nil {
			return err
		}
	}
	return nil
}

// BatchSetBuyingFee applies SetBuyingFee element-wise.
func (s *Service) BatchSetBuyingFee(ctx context.Context, actor domain.Address, keys []domain.AssetKey, bps []int64) error {
	if err := checkBatch(len(keys), len(bps)); err != nil {
		return err
	}
	for i, key := range keys {
		if err := s.SetBuyingFee(ctx, actor, key, bps[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) setOverride(ctx context.Context, actor domain.Address, key domain.AssetKey, initial, buying *int64) error {
	if err := s.Access.Require(actor, domain.RoleFeeManager); err != nil {
		return err
	}
	override, err := s.Repo.Get(ctx, key)
	if err != nil {
		return err
	}
	if override == nil {
		override = &domain.FeeOverride{Key: key}
	}
	if initial != nil {
		if err := domain.ValidateBps(*initial); err != nil {
			return err
		}
		override.InitialFeeBps = initial
	}
	if buying != nil {
		if err := domain.ValidateBps(*buying); err != nil {
			return err
		}
		override.BuyingFeeBps = buying
	}
	return s.Repo.Put(ctx, override)
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
