package dispensing

import (
	"github.com/shopspring/decimal"

	"github.com/rxledger/rxledger/internal/ledger"
)

// BuildPlan computes a FEFO allocation across the given batches, which must
// already be in ledger allocation order; the allocator never re-sorts.
// Pure planning: nothing is debited here. Fails with InsufficientStockError
// when the batches cannot cover the request.
func BuildPlan(productID int64, batches []ledger.Batch, requested decimal.Decimal) (Plan, error) {
	if requested.Sign() <= 0 {
		return Plan{}, ErrInvalidQuantity
	}

	remaining := requested
	allocations := make([]Allocation, 0, 1)
	for _, batch := range batches {
		if remaining.Sign() == 0 {
			break
		}
		take := decimal.Min(remaining, batch.CurrentQuantity)
		if take.Sign() <= 0 {
			continue
		}
		allocations = append(allocations, Allocation{
			BatchID:     batch.ID,
			BatchNumber: batch.BatchNumber,
			ExpiryDate:  batch.ExpiryDate,
			BaseUnits:   take,
			Observed:    batch.CurrentQuantity,
		})
		remaining = remaining.Sub(take)
	}

	if remaining.Sign() > 0 {
		available := decimal.Zero
		for _, batch := range batches {
			available = available.Add(batch.CurrentQuantity)
		}
		return Plan{}, &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
	}

	return Plan{ProductID: productID, Requested: requested, Allocations: allocations}, nil
}
