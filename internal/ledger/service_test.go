package ledger

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	batches map[int64]*Batch
	nextID  int64
	now     func() time.Time
}

func newMemoryRepo(now func() time.Time) *memoryRepo {
	return &memoryRepo{batches: map[int64]*Batch{}, now: now}
}

func (r *memoryRepo) CreateBatch(ctx context.Context, input CreateBatchInput) (Batch, error) {
	for _, b := range r.batches {
		if b.ProductID == input.ProductID && b.BatchNumber == input.BatchNumber {
			return Batch{}, ErrDuplicateBatchNumber
		}
	}
	r.nextID++
	batch := Batch{
		ID:               r.nextID,
		ProductID:        input.ProductID,
		BatchNumber:      input.BatchNumber,
		LotNumber:        input.LotNumber,
		ManufactureDate:  input.ManufactureDate,
		ExpiryDate:       input.ExpiryDate,
		QuantityReceived: input.BaseUnits,
		CurrentQuantity:  input.BaseUnits,
		UnitCost:         input.UnitCost,
		WarehouseRef:     input.WarehouseRef,
		Status:           StatusQuarantine,
		CreatedAt:        r.now(),
	}
	r.batches[batch.ID] = &batch
	return batch, nil
}

func (r *memoryRepo) GetBatch(ctx context.Context, id int64) (Batch, error) {
	b, ok := r.batches[id]
	if !ok {
		return Batch{}, ErrBatchNotFound
	}
	return *b, nil
}

func (r *memoryRepo) SetStatusFromQuarantine(ctx context.Context, id int64, to BatchStatus) (Batch, error) {
	b, ok := r.batches[id]
	if !ok {
		return Batch{}, ErrBatchNotFound
	}
	if b.Status != StatusQuarantine {
		return Batch{}, ErrInvalidStateTransition
	}
	b.Status = to
	return *b, nil
}

func (r *memoryRepo) AvailableBatches(ctx context.Context, productID int64) ([]Batch, error) {
	now := r.now()
	var out []Batch
	for _, b := range r.batches {
		if b.ProductID == productID && b.Allocatable(now) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
			return out[i].ExpiryDate.Before(out[j].ExpiryDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) ListByProduct(ctx context.Context, productID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.ProductID == productID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	for _, b := range r.batches {
		if b.Status == StatusApproved && !b.ExpiryDate.After(now) && b.CurrentQuantity.Sign() > 0 {
			b.Status = StatusExpired
			count++
		}
	}
	return count, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func testService() (*Service, *memoryRepo) {
	repo := newMemoryRepo(fixedClock(testNow))
	svc := NewService(repo).WithClock(fixedClock(testNow))
	return svc, repo
}

func validInput() CreateBatchInput {
	return CreateBatchInput{
		ProductID:       1,
		BatchNumber:     "BN-001",
		ManufactureDate: day("2024-01-01"),
		ExpiryDate:      day("2025-01-01"),
		BaseUnits:       dec("200"),
		UnitCost:        dec("2.5"),
		WarehouseRef:    "WH-MAIN",
	}
}

func TestCreateBatchValidation(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	batch, err := svc.CreateBatch(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, StatusQuarantine, batch.Status)
	require.True(t, batch.CurrentQuantity.Equal(batch.QuantityReceived))

	_, err = svc.CreateBatch(ctx, validInput())
	require.ErrorIs(t, err, ErrDuplicateBatchNumber)

	bad := validInput()
	bad.BatchNumber = "BN-002"
	bad.ExpiryDate = day("2023-12-01")
	_, err = svc.CreateBatch(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidDateRange)

	// Expiry after manufacture but already in the past at receipt.
	stale := validInput()
	stale.BatchNumber = "BN-003"
	stale.ManufactureDate = day("2023-01-01")
	stale.ExpiryDate = day("2024-05-01")
	_, err = svc.CreateBatch(ctx, stale)
	require.ErrorIs(t, err, ErrInvalidDateRange)

	empty := validInput()
	empty.BatchNumber = "BN-004"
	empty.BaseUnits = decimal.Zero
	_, err = svc.CreateBatch(ctx, empty)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestApproveRejectStateMachine(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	batch, err := svc.CreateBatch(ctx, validInput())
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, batch.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	// Double approval and late rejection both violate the quarantine CAS.
	_, err = svc.Approve(ctx, batch.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = svc.Reject(ctx, batch.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	other := validInput()
	other.BatchNumber = "BN-REJ"
	rejectMe, err := svc.CreateBatch(ctx, other)
	require.NoError(t, err)
	rejected, err := svc.Reject(ctx, rejectMe.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
}

func TestAvailableBatchesFEFOOrder(t *testing.T) {
	svc, _ := testService()
	ctx := context.Background()

	expiries := []string{"2025-01-01", "2025-06-01", "2024-12-01"}
	for _, exp := range expiries {
		input := validInput()
		input.BatchNumber = "BN-" + exp
		input.ExpiryDate = day(exp)
		batch, err := svc.CreateBatch(ctx, input)
		require.NoError(t, err)
		_, err = svc.Approve(ctx, batch.ID)
		require.NoError(t, err)
	}

	batches, err := svc.AvailableBatches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	require.Equal(t, day("2024-12-01"), batches[0].ExpiryDate)
	require.Equal(t, day("2025-01-01"), batches[1].ExpiryDate)
	require.Equal(t, day("2025-06-01"), batches[2].ExpiryDate)

	// Quarantined, rejected and expired stock never shows up.
	quarantined := validInput()
	quarantined.BatchNumber = "BN-Q"
	_, err = svc.CreateBatch(ctx, quarantined)
	require.NoError(t, err)

	batches, err = svc.AvailableBatches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batches, 3)
}

func TestSweepExpired(t *testing.T) {
	svc, repo := testService()
	ctx := context.Background()

	input := validInput()
	input.ExpiryDate = testNow.Add(24 * time.Hour)
	batch, err := svc.CreateBatch(ctx, input)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, batch.ID)
	require.NoError(t, err)

	// Move the clock past expiry and sweep.
	later := testNow.Add(48 * time.Hour)
	repo.now = fixedClock(later)
	svc.WithClock(fixedClock(later))

	count, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	got, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Equal(t, StatusExpired, got.Status)

	available, err := svc.AvailableBatches(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, available)
}
