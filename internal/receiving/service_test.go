package receiving

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rxledger/rxledger/internal/catalog"
	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/shared"
)

type fakeCatalog struct {
	product catalog.Product
	levels  []catalog.PackagingLevel
}

func (c *fakeCatalog) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	if id != c.product.ID {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return c.product, nil
}

func (c *fakeCatalog) PurchasableLevel(ctx context.Context, productID, levelID int64) (catalog.PackagingLevel, error) {
	for _, lvl := range c.levels {
		if lvl.ID == levelID {
			if !lvl.CanPurchase {
				return catalog.PackagingLevel{}, catalog.ErrNoPurchasableLevel
			}
			return lvl, nil
		}
	}
	return catalog.PackagingLevel{}, catalog.ErrUnknownLevel
}

type fakeLedger struct {
	created []ledger.CreateBatchInput
	err     error
}

func (l *fakeLedger) CreateBatch(ctx context.Context, input ledger.CreateBatchInput) (ledger.Batch, error) {
	if l.err != nil {
		return ledger.Batch{}, l.err
	}
	l.created = append(l.created, input)
	return ledger.Batch{
		ID:               int64(len(l.created)),
		ProductID:        input.ProductID,
		BatchNumber:      input.BatchNumber,
		ExpiryDate:       input.ExpiryDate,
		QuantityReceived: input.BaseUnits,
		CurrentQuantity:  input.BaseUnits,
		UnitCost:         input.UnitCost,
		WarehouseRef:     input.WarehouseRef,
		Status:           ledger.StatusQuarantine,
		CreatedAt:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

type auditSink struct{ logs []shared.AuditLog }

func (a *auditSink) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

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

func testFixtures() (*fakeCatalog, *fakeLedger, *auditSink, *Service) {
	cat := &fakeCatalog{
		product: catalog.Product{ID: 1, GenericName: "Amoxicillin", Strength: "500mg", DosageForm: "capsule"},
		levels: []catalog.PackagingLevel{
			{ID: 10, ProductID: 1, LevelOrder: 1, BaseUnitQty: dec("1"), UnitOfMeasure: "capsule", CanDispense: true},
			{ID: 12, ProductID: 1, LevelOrder: 3, BaseUnitQty: dec("100"), UnitOfMeasure: "box", CanPurchase: true},
		},
	}
	led := &fakeLedger{}
	audit := &auditSink{}
	return cat, led, audit, NewService(cat, led, audit)
}

func boxes(n string) ReceiveInput {
	return ReceiveInput{
		ProductID:       1,
		LevelID:         12,
		Quantity:        dec(n),
		BatchNumber:     "AMX-2024-001",
		ManufactureDate: day("2024-01-01"),
		ExpiryDate:      day("2025-06-01"),
		UnitCost:        dec("250"),
		WarehouseRef:    "WH-MAIN",
		ActorID:         7,
	}
}

func TestReceiveNormalisesToBaseUnits(t *testing.T) {
	_, led, audit, svc := testFixtures()

	receipt, err := svc.Receive(context.Background(), boxes("2"))
	require.NoError(t, err)

	// 2 boxes of 100 land as 200 base units at 2.50 per unit.
	require.True(t, receipt.BaseUnits.Equal(dec("200")))
	require.True(t, receipt.UnitCostBase.Equal(dec("2.5")))
	require.Equal(t, ledger.StatusQuarantine, receipt.Status)
	require.Equal(t, "AMX-2024-001", receipt.BatchNumber)

	require.Len(t, led.created, 1)
	require.True(t, led.created[0].BaseUnits.Equal(dec("200")))
	require.True(t, led.created[0].UnitCost.Equal(dec("2.5")))

	require.Len(t, audit.logs, 1)
	require.Equal(t, "receiving:create_batch", audit.logs[0].Action)
	require.EqualValues(t, 7, audit.logs[0].ActorID)
}

func TestReceiveRejectsNonPurchasableLevel(t *testing.T) {
	_, led, _, svc := testFixtures()

	input := boxes("2")
	input.LevelID = 10
	_, err := svc.Receive(context.Background(), input)
	require.ErrorIs(t, err, catalog.ErrNoPurchasableLevel)
	require.Empty(t, led.created)

	input.LevelID = 999
	_, err = svc.Receive(context.Background(), input)
	require.ErrorIs(t, err, catalog.ErrUnknownLevel)
}

func TestReceiveRejectsUnknownProduct(t *testing.T) {
	_, led, _, svc := testFixtures()

	input := boxes("2")
	input.ProductID = 99
	_, err := svc.Receive(context.Background(), input)
	require.ErrorIs(t, err, catalog.ErrNotFound)
	require.Empty(t, led.created)
}

func TestReceiveRejectsNonPositiveQuantity(t *testing.T) {
	_, led, _, svc := testFixtures()

	input := boxes("0")
	_, err := svc.Receive(context.Background(), input)
	require.ErrorIs(t, err, catalog.ErrInvalidQuantity)
	require.Empty(t, led.created)
}

func TestReceivePropagatesLedgerErrors(t *testing.T) {
	_, led, audit, svc := testFixtures()
	led.err = ledger.ErrDuplicateBatchNumber

	_, err := svc.Receive(context.Background(), boxes("2"))
	require.ErrorIs(t, err, ledger.ErrDuplicateBatchNumber)
	require.Empty(t, audit.logs)
}
