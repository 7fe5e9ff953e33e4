package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists products and packaging levels.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, product Product) (Product, error)
	UpdateProduct(ctx context.Context, id int64, product Product) error
	ListLevels(ctx context.Context, productID int64) ([]PackagingLevel, error)
	ReplaceLevels(ctx context.Context, productID int64, levels []PackagingLevel) ([]PackagingLevel, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	query := `SELECT id, generic_name, strength, dosage_form, requires_prescription, is_controlled_substance, created_at, updated_at FROM products WHERE id = $1`
	var p Product
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.GenericName, &p.Strength, &p.DosageForm, &p.RequiresPrescription, &p.IsControlledSubstance, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *repository) CreateProduct(ctx context.Context, product Product) (Product, error) {
	query := `INSERT INTO products (generic_name, strength, dosage_form, requires_prescription, is_controlled_substance, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, query, product.GenericName, product.Strength, product.DosageForm, product.RequiresPrescription, product.IsControlledSubstance, now).Scan(&product.ID)
	if err != nil {
		return Product{}, err
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) UpdateProduct(ctx context.Context, id int64, product Product) error {
	query := `UPDATE products SET generic_name = $1, strength = $2, dosage_form = $3, requires_prescription = $4, is_controlled_substance = $5, updated_at = $6 WHERE id = $7`
	tag, err := r.db.Exec(ctx, query, product.GenericName, product.Strength, product.DosageForm, product.RequiresPrescription, product.IsControlledSubstance, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ListLevels(ctx context.Context, productID int64) ([]PackagingLevel, error) {
	query := `SELECT id, product_id, level_order, base_unit_qty, unit_of_measure, cost_price, selling_price, can_dispense, can_purchase FROM packaging_levels WHERE product_id = $1 ORDER BY level_order ASC`
	rows, err := r.db.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []PackagingLevel
	for rows.Next() {
		var lvl PackagingLevel
		if err := rows.Scan(&lvl.ID, &lvl.ProductID, &lvl.LevelOrder, &lvl.BaseUnitQty, &lvl.UnitOfMeasure, &lvl.CostPrice, &lvl.SellingPrice, &lvl.CanDispense, &lvl.CanPurchase); err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

func (r *repository) ReplaceLevels(ctx context.Context, productID int64, levels []PackagingLevel) ([]PackagingLevel, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM packaging_levels WHERE product_id = $1`, productID); err != nil {
		return nil, err
	}
	out := make([]PackagingLevel, 0, len(levels))
	for _, lvl := range levels {
		lvl.ProductID = productID
		err := tx.QueryRow(ctx, `INSERT INTO packaging_levels (product_id, level_order, base_unit_qty, unit_of_measure, cost_price, selling_price, can_dispense, can_purchase) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			productID, lvl.LevelOrder, lvl.BaseUnitQty, lvl.UnitOfMeasure, lvl.CostPrice, lvl.SellingPrice, lvl.CanDispense, lvl.CanPurchase).Scan(&lvl.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return nil, ErrLevelOrderConflict
			}
			return nil, err
		}
		out = append(out, lvl)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
