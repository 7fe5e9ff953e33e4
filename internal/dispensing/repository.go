package dispensing

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/platform/db"
)

// Repository commits dispensing records and reads them back. The records table
// is append-only; there is deliberately no update or delete here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Commit applies the plan and writes the record in one repeatable-read
// transaction: every planned debit re-locks its batch row and verifies the
// observed quantity, so either the whole plan lands or nothing does.
func (r *Repository) Commit(ctx context.Context, record Record, plan Plan) (Record, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, alloc := range plan.Allocations {
			if _, err := ledger.DebitTx(ctx, tx, alloc.BatchID, alloc.BaseUnits, alloc.Observed); err != nil {
				return err
			}
		}

		err := tx.QueryRow(ctx, `INSERT INTO dispensing_records (reference, product_id, level_id, quantity_units, unit_price, total_price, base_units, patient_name, prescriber_name, prescription_ref, dispensed_by, dispensed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
			record.Reference, record.ProductID, record.LevelID, record.QuantityUnits, record.UnitPrice, record.TotalPrice, record.BaseUnits,
			record.PatientName, record.PrescriberName, record.PrescriptionRef, record.DispensedBy, record.DispensedAt).Scan(&record.ID)
		if err != nil {
			return err
		}

		record.Items = record.Items[:0]
		for _, alloc := range plan.Allocations {
			item := RecordItem{RecordID: record.ID, BatchID: alloc.BatchID, BaseUnits: alloc.BaseUnits}
			err := tx.QueryRow(ctx, `INSERT INTO dispensing_record_items (record_id, batch_id, base_units) VALUES ($1, $2, $3) RETURNING id`,
				item.RecordID, item.BatchID, item.BaseUnits).Scan(&item.ID)
			if err != nil {
				return err
			}
			record.Items = append(record.Items, item)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

// ListByProduct returns records for a product, newest first, items included.
func (r *Repository) ListByProduct(ctx context.Context, productID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, reference, product_id, level_id, quantity_units, unit_price, total_price, base_units, patient_name, prescriber_name, prescription_ref, dispensed_by, dispensed_at
FROM dispensing_records WHERE product_id = $1 ORDER BY dispensed_at DESC, id DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	index := map[int64]int{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Reference, &rec.ProductID, &rec.LevelID, &rec.QuantityUnits, &rec.UnitPrice, &rec.TotalPrice, &rec.BaseUnits, &rec.PatientName, &rec.PrescriberName, &rec.PrescriptionRef, &rec.DispensedBy, &rec.DispensedAt); err != nil {
			return nil, err
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	itemRows, err := r.pool.Query(ctx, `SELECT id, record_id, batch_id, base_units FROM dispensing_record_items WHERE record_id = ANY($1) ORDER BY id ASC`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item RecordItem
		if err := itemRows.Scan(&item.ID, &item.RecordID, &item.BatchID, &item.BaseUnits); err != nil {
			return nil, err
		}
		if i, ok := index[item.RecordID]; ok {
			records[i].Items = append(records[i].Items, item)
		}
	}
	return records, itemRows.Err()
}

// ConsumedByBatch sums the base units committed against one batch across all
// records. Used by conservation checks and batch drill-downs.
func (r *Repository) ConsumedByBatch(ctx context.Context, batchID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(base_units), 0) FROM dispensing_record_items WHERE batch_id = $1`, batchID).Scan(&total)
	return total, err
}
