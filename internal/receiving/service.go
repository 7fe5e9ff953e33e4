// Package receiving turns incoming bulk shipments into quarantined batches.
package receiving

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxledger/rxledger/internal/catalog"
	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/shared"
)

// CatalogPort is the slice of the catalog the workflow needs.
type CatalogPort interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	PurchasableLevel(ctx context.Context, productID, levelID int64) (catalog.PackagingLevel, error)
}

// LedgerPort creates batches.
type LedgerPort interface {
	CreateBatch(ctx context.Context, input ledger.CreateBatchInput) (ledger.Batch, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReceiveInput describes an incoming shipment at a purchasable packaging level.
type ReceiveInput struct {
	ProductID       int64
	LevelID         int64
	Quantity        decimal.Decimal
	BatchNumber     string
	LotNumber       string
	ManufactureDate time.Time
	ExpiryDate      time.Time
	// UnitCost is quoted in the receiving level's units.
	UnitCost     decimal.Decimal
	WarehouseRef string
	ActorID      int64
}

// Receipt is the flat, serializable record of a successful receipt.
type Receipt struct {
	BatchID       int64
	ProductID     int64
	BatchNumber   string
	LevelID       int64
	QuantityUnits decimal.Decimal
	BaseUnits     decimal.Decimal
	UnitCostBase  decimal.Decimal
	WarehouseRef  string
	ExpiryDate    time.Time
	Status        ledger.BatchStatus
	ReceivedAt    time.Time
}

// Service orchestrates resolver and ledger for goods receipt.
type Service struct {
	catalog  CatalogPort
	ledger   LedgerPort
	resolver catalog.Resolver
	audit    AuditPort
}

// NewService builds the receiving service.
func NewService(cat CatalogPort, led LedgerPort, audit AuditPort) *Service {
	return &Service{catalog: cat, ledger: led, resolver: catalog.NewResolver(), audit: audit}
}

// Receive normalises the shipment to base units and registers exactly one new
// quarantined batch. Validation failures abort with no state change.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Receipt, error) {
	if _, err := s.catalog.GetProduct(ctx, input.ProductID); err != nil {
		return Receipt{}, err
	}
	level, err := s.catalog.PurchasableLevel(ctx, input.ProductID, input.LevelID)
	if err != nil {
		return Receipt{}, err
	}

	baseUnits, err := s.resolver.ToBaseUnits(level, input.Quantity)
	if err != nil {
		return Receipt{}, err
	}
	unitCost, err := s.resolver.UnitCostInBase(level, input.UnitCost)
	if err != nil {
		return Receipt{}, err
	}

	batch, err := s.ledger.CreateBatch(ctx, ledger.CreateBatchInput{
		ProductID:       input.ProductID,
		BatchNumber:     input.BatchNumber,
		LotNumber:       input.LotNumber,
		ManufactureDate: input.ManufactureDate,
		ExpiryDate:      input.ExpiryDate,
		BaseUnits:       baseUnits,
		UnitCost:        unitCost,
		WarehouseRef:    input.WarehouseRef,
	})
	if err != nil {
		return Receipt{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "receiving:create_batch",
			Entity:   "batch",
			EntityID: batch.BatchNumber,
			Meta: map[string]any{
				"product_id":    input.ProductID,
				"level_id":      level.ID,
				"base_units":    baseUnits.String(),
				"warehouse_ref": input.WarehouseRef,
			},
		})
	}

	return Receipt{
		BatchID:       batch.ID,
		ProductID:     batch.ProductID,
		BatchNumber:   batch.BatchNumber,
		LevelID:       level.ID,
		QuantityUnits: input.Quantity,
		BaseUnits:     baseUnits,
		UnitCostBase:  unitCost,
		WarehouseRef:  batch.WarehouseRef,
		ExpiryDate:    batch.ExpiryDate,
		Status:        batch.Status,
		ReceivedAt:    batch.CreatedAt,
	}, nil
}
