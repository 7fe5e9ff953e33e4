package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const batchColumns = `id, product_id, batch_number, lot_number, manufacture_date, expiry_date, quantity_received, current_quantity, unit_cost, warehouse_ref, status, created_at, updated_at`

// Repository persists batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.LotNumber, &b.ManufactureDate, &b.ExpiryDate, &b.QuantityReceived, &b.CurrentQuantity, &b.UnitCost, &b.WarehouseRef, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrBatchNotFound
	}
	return b, err
}

// CreateBatch inserts a quarantined batch. The (product_id, batch_number)
// unique index backs the duplicate check.
func (r *Repository) CreateBatch(ctx context.Context, input CreateBatchInput) (Batch, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO batches (product_id, batch_number, lot_number, manufacture_date, expiry_date, quantity_received, current_quantity, unit_cost, warehouse_ref, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8, $9, NOW(), NOW())
RETURNING `+batchColumns,
		input.ProductID, input.BatchNumber, input.LotNumber, input.ManufactureDate, input.ExpiryDate, input.BaseUnits, input.UnitCost, input.WarehouseRef, StatusQuarantine)
	batch, err := scanBatch(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Batch{}, ErrDuplicateBatchNumber
		}
		return Batch{}, err
	}
	return batch, nil
}

// GetBatch fetches one batch.
func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id))
}

// SetStatusFromQuarantine performs the QC compare-and-set: the batch moves to
// the target status only if it is still quarantined. Zero rows means the state
// machine forbids the transition.
func (r *Repository) SetStatusFromQuarantine(ctx context.Context, id int64, to BatchStatus) (Batch, error) {
	row := r.pool.QueryRow(ctx, `UPDATE batches SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3 RETURNING `+batchColumns, to, id, StatusQuarantine)
	batch, err := scanBatch(row)
	if errors.Is(err, ErrBatchNotFound) {
		// Distinguish a missing batch from a CAS failure.
		if _, getErr := r.GetBatch(ctx, id); getErr != nil {
			return Batch{}, getErr
		}
		return Batch{}, ErrInvalidStateTransition
	}
	return batch, err
}

// AvailableBatches returns FEFO-eligible batches in allocation order:
// ascending expiry date, creation time breaking ties. This ordering is the
// allocator's only source of truth.
func (r *Repository) AvailableBatches(ctx context.Context, productID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM batches
WHERE product_id = $1 AND status = $2 AND current_quantity > 0 AND expiry_date > NOW()
ORDER BY expiry_date ASC, created_at ASC, id ASC`, productID, StatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// ListByProduct returns all batches of a product, newest first.
func (r *Repository) ListByProduct(ctx context.Context, productID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM batches WHERE product_id = $1 ORDER BY created_at DESC, id DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// HasBatches reports whether any batch references the product.
func (r *Repository) HasBatches(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM batches WHERE product_id = $1)`, productID).Scan(&exists)
	return exists, err
}

// MarkExpired flips approved batches past their expiry date to EXPIRED and
// returns how many were flipped. Depleted batches stay depleted.
func (r *Repository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE batches SET status = $1, updated_at = NOW() WHERE status = $2 AND expiry_date <= $3 AND current_quantity > 0`, StatusExpired, StatusApproved, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DebitTx debits a batch inside the caller's transaction. It locks the row,
// enforces the state machine, verifies the quantity observed at planning time
// and flips the batch to DEPLETED when it hits exactly zero. This is the only
// mutator of current_quantity.
func DebitTx(ctx context.Context, tx pgx.Tx, batchID int64, amount, observed decimal.Decimal) (Batch, error) {
	if amount.Sign() <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	batch, err := scanBatch(tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, batchID))
	if err != nil {
		return Batch{}, err
	}
	if batch.Status != StatusApproved {
		return Batch{}, ErrInvalidStateTransition
	}
	if !batch.CurrentQuantity.Equal(observed) {
		return Batch{}, ErrConcurrentConflict
	}
	if amount.GreaterThan(batch.CurrentQuantity) {
		return Batch{}, ErrInsufficientQuantity
	}
	remaining := batch.CurrentQuantity.Sub(amount)
	status := batch.Status
	if remaining.Sign() == 0 {
		status = StatusDepleted
	}
	row := tx.QueryRow(ctx, `UPDATE batches SET current_quantity = $1, status = $2, updated_at = NOW() WHERE id = $3 RETURNING `+batchColumns, remaining, status, batchID)
	return scanBatch(row)
}
