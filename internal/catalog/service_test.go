package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	products map[int64]Product
	levels   map[int64][]PackagingLevel
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: map[int64]Product{}, levels: map[int64][]PackagingLevel{}}
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) CreateProduct(ctx context.Context, product Product) (Product, error) {
	r.nextID++
	product.ID = r.nextID
	r.products[product.ID] = product
	return product, nil
}

func (r *memoryRepo) UpdateProduct(ctx context.Context, id int64, product Product) error {
	if _, ok := r.products[id]; !ok {
		return ErrNotFound
	}
	product.ID = id
	r.products[id] = product
	return nil
}

func (r *memoryRepo) ListLevels(ctx context.Context, productID int64) ([]PackagingLevel, error) {
	out := make([]PackagingLevel, len(r.levels[productID]))
	copy(out, r.levels[productID])
	return out, nil
}

func (r *memoryRepo) ReplaceLevels(ctx context.Context, productID int64, levels []PackagingLevel) ([]PackagingLevel, error) {
	saved := make([]PackagingLevel, 0, len(levels))
	for _, lvl := range levels {
		r.nextID++
		lvl.ID = r.nextID
		lvl.ProductID = productID
		saved = append(saved, lvl)
	}
	r.levels[productID] = saved
	return saved, nil
}

type staticGuard bool

func (g staticGuard) HasBatches(ctx context.Context, productID int64) (bool, error) {
	return bool(g), nil
}

func TestReplaceLevelsValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, staticGuard(false))
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, Product{GenericName: "Amoxicillin", Strength: "500mg", DosageForm: "tablet"})
	require.NoError(t, err)

	// Level 1 must hold exactly one base unit.
	_, err = svc.ReplaceLevels(ctx, product.ID, []PackagingLevel{
		{LevelOrder: 1, BaseUnitQty: dec("2"), UnitOfMeasure: "tablet"},
	})
	require.ErrorIs(t, err, ErrBaseLevelNotUnit)

	// Duplicate level order.
	_, err = svc.ReplaceLevels(ctx, product.ID, []PackagingLevel{
		{LevelOrder: 1, BaseUnitQty: dec("1"), UnitOfMeasure: "tablet"},
		{LevelOrder: 1, BaseUnitQty: dec("10"), UnitOfMeasure: "strip"},
	})
	require.ErrorIs(t, err, ErrLevelOrderConflict)

	// Base quantity must not decrease as order increases.
	_, err = svc.ReplaceLevels(ctx, product.ID, []PackagingLevel{
		{LevelOrder: 1, BaseUnitQty: dec("1"), UnitOfMeasure: "tablet"},
		{LevelOrder: 2, BaseUnitQty: dec("10"), UnitOfMeasure: "strip"},
		{LevelOrder: 3, BaseUnitQty: dec("5"), UnitOfMeasure: "box"},
	})
	require.ErrorIs(t, err, ErrBaseQtyNotMonotonic)

	saved, err := svc.ReplaceLevels(ctx, product.ID, []PackagingLevel{
		{LevelOrder: 1, BaseUnitQty: dec("1"), UnitOfMeasure: "tablet", CanDispense: true},
		{LevelOrder: 2, BaseUnitQty: dec("10"), UnitOfMeasure: "strip", CanDispense: true},
		{LevelOrder: 3, BaseUnitQty: dec("100"), UnitOfMeasure: "box", CanPurchase: true},
	})
	require.NoError(t, err)
	require.Len(t, saved, 3)
}

func TestProductIdentityFrozenAfterFirstBatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, staticGuard(true))
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, Product{GenericName: "Amoxicillin", Strength: "500mg", DosageForm: "tablet"})
	require.NoError(t, err)

	// Renaming the identity is rejected once batches exist.
	changed := product
	changed.GenericName = "Amoxycillin"
	err = svc.UpdateProduct(ctx, product.ID, changed)
	require.ErrorIs(t, err, ErrProductImmutable)

	// Flags stay editable.
	flagged := product
	flagged.RequiresPrescription = true
	require.NoError(t, svc.UpdateProduct(ctx, product.ID, flagged))
}

func TestDispensableAndPurchasableLevel(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, staticGuard(false))
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, Product{GenericName: "Amoxicillin", Strength: "500mg", DosageForm: "tablet"})
	require.NoError(t, err)
	levels, err := svc.ReplaceLevels(ctx, product.ID, []PackagingLevel{
		{LevelOrder: 1, BaseUnitQty: dec("1"), UnitOfMeasure: "tablet", CanDispense: true},
		{LevelOrder: 2, BaseUnitQty: dec("100"), UnitOfMeasure: "box", CanPurchase: true},
	})
	require.NoError(t, err)

	tablet, box := levels[0], levels[1]

	lvl, err := svc.DispensableLevel(ctx, product.ID, tablet.ID)
	require.NoError(t, err)
	require.True(t, lvl.CanDispense)

	_, err = svc.DispensableLevel(ctx, product.ID, box.ID)
	require.ErrorIs(t, err, ErrNoDispensableLevel)

	_, err = svc.PurchasableLevel(ctx, product.ID, tablet.ID)
	require.ErrorIs(t, err, ErrNoPurchasableLevel)

	_, err = svc.DispensableLevel(ctx, product.ID, 999)
	require.ErrorIs(t, err, ErrUnknownLevel)
}
