package catalog

import (
	"context"
	"errors"
)

// BatchGuard answers whether a product already has received batches.
// Implemented by the ledger repository; used to freeze product identity.
type BatchGuard interface {
	HasBatches(ctx context.Context, productID int64) (bool, error)
}

// Service owns product and packaging-level reference data.
type Service struct {
	repo  Repository
	cache *LevelCache
	guard BatchGuard
}

// NewService builds the catalog service.
func NewService(repo Repository, cache *LevelCache, guard BatchGuard) *Service {
	return &Service{repo: repo, cache: cache, guard: guard}
}

// GetProduct fetches one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrNotFound
	}
	return s.repo.GetProduct(ctx, id)
}

// CreateProduct registers a new product identity.
func (s *Service) CreateProduct(ctx context.Context, product Product) (Product, error) {
	if err := validateProduct(product); err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, product)
}

// UpdateProduct edits a product. Identity fields are frozen once any batch
// references the product; only the flags stay editable after that.
func (s *Service) UpdateProduct(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return ErrNotFound
	}
	if err := validateProduct(product); err != nil {
		return err
	}
	current, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	identityChanged := current.GenericName != product.GenericName ||
		current.Strength != product.Strength ||
		current.DosageForm != product.DosageForm
	if identityChanged && s.guard != nil {
		has, err := s.guard.HasBatches(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return ErrProductImmutable
		}
	}
	return s.repo.UpdateProduct(ctx, id, product)
}

// LevelsFor returns the product's packaging levels ordered by level_order,
// read through the cache. The slice is recomputed per call, never a live view.
func (s *Service) LevelsFor(ctx context.Context, productID int64) ([]PackagingLevel, error) {
	if productID <= 0 {
		return nil, ErrNotFound
	}
	if levels, ok := s.cache.Get(ctx, productID); ok {
		return levels, nil
	}
	levels, err := s.repo.ListLevels(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, productID, levels)
	return levels, nil
}

// ReplaceLevels swaps the product's full packaging hierarchy after validating
// the level invariants, then invalidates the cache.
func (s *Service) ReplaceLevels(ctx context.Context, productID int64, levels []PackagingLevel) ([]PackagingLevel, error) {
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if err := validateLevels(levels); err != nil {
		return nil, err
	}
	out, err := s.repo.ReplaceLevels(ctx, productID, levels)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, productID)
	return out, nil
}

// DispensableLevel resolves a level id for dispensing: it must belong to the
// product and allow dispensing.
func (s *Service) DispensableLevel(ctx context.Context, productID, levelID int64) (PackagingLevel, error) {
	levels, err := s.LevelsFor(ctx, productID)
	if err != nil {
		return PackagingLevel{}, err
	}
	lvl, err := LevelFor(levels, levelID)
	if err != nil {
		return PackagingLevel{}, err
	}
	if !lvl.CanDispense {
		return PackagingLevel{}, ErrNoDispensableLevel
	}
	return lvl, nil
}

// PurchasableLevel resolves a level id for receiving.
func (s *Service) PurchasableLevel(ctx context.Context, productID, levelID int64) (PackagingLevel, error) {
	levels, err := s.LevelsFor(ctx, productID)
	if err != nil {
		return PackagingLevel{}, err
	}
	lvl, err := LevelFor(levels, levelID)
	if err != nil {
		return PackagingLevel{}, err
	}
	if !lvl.CanPurchase {
		return PackagingLevel{}, ErrNoPurchasableLevel
	}
	return lvl, nil
}

// IsNotFound reports whether err represents a missing catalog entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
