package dispensing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rxledger/rxledger/internal/ledger"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func approvedBatch(id int64, number string, expiry string, qty string) ledger.Batch {
	return ledger.Batch{
		ID:              id,
		ProductID:       1,
		BatchNumber:     number,
		ExpiryDate:      day(expiry),
		CurrentQuantity: dec(qty),
		Status:          ledger.StatusApproved,
	}
}

func TestBuildPlanConsumesInGivenOrder(t *testing.T) {
	batches := []ledger.Batch{
		approvedBatch(1, "B-EARLY", "2024-12-01", "50"),
		approvedBatch(2, "B-MID", "2025-01-01", "50"),
		approvedBatch(3, "B-LATE", "2025-06-01", "50"),
	}

	plan, err := BuildPlan(1, batches, dec("60"))
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)
	require.EqualValues(t, 1, plan.Allocations[0].BatchID)
	require.True(t, plan.Allocations[0].BaseUnits.Equal(dec("50")))
	require.EqualValues(t, 2, plan.Allocations[1].BatchID)
	require.True(t, plan.Allocations[1].BaseUnits.Equal(dec("10")))
}

func TestBuildPlanSpansMultipleBatches(t *testing.T) {
	batches := []ledger.Batch{
		approvedBatch(1, "B1", "2024-12-01", "10"),
		approvedBatch(2, "B2", "2025-01-01", "5"),
	}

	plan, err := BuildPlan(1, batches, dec("12"))
	require.NoError(t, err)
	require.Len(t, plan.Allocations, 2)
	require.True(t, plan.Allocations[0].BaseUnits.Equal(dec("10")))
	require.True(t, plan.Allocations[1].BaseUnits.Equal(dec("2")))
	require.True(t, plan.Allocations[1].Observed.Equal(dec("5")))
}

func TestBuildPlanInsufficientStock(t *testing.T) {
	batches := []ledger.Batch{
		approvedBatch(1, "B1", "2024-12-01", "10"),
		approvedBatch(2, "B2", "2025-01-01", "5"),
	}

	_, err := BuildPlan(1, batches, dec("16"))
	require.ErrorIs(t, err, ErrInsufficientStock)

	var detail *InsufficientStockError
	require.ErrorAs(t, err, &detail)
	require.True(t, detail.Requested.Equal(dec("16")))
	require.True(t, detail.Available.Equal(dec("15")))
	require.EqualValues(t, 1, detail.ProductID)
}

func TestBuildPlanRejectsNonPositiveRequest(t *testing.T) {
	batches := []ledger.Batch{approvedBatch(1, "B1", "2024-12-01", "10")}

	_, err := BuildPlan(1, batches, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = BuildPlan(1, batches, dec("-3"))
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestBuildPlanDoesNotMutateBatches(t *testing.T) {
	batches := []ledger.Batch{
		approvedBatch(1, "B1", "2024-12-01", "10"),
		approvedBatch(2, "B2", "2025-01-01", "5"),
	}

	_, err := BuildPlan(1, batches, dec("12"))
	require.NoError(t, err)
	require.True(t, batches[0].CurrentQuantity.Equal(dec("10")))
	require.True(t, batches[1].CurrentQuantity.Equal(dec("5")))
}
