package dispensing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rxledger/rxledger/internal/catalog"
	"github.com/rxledger/rxledger/internal/ledger"
	"github.com/rxledger/rxledger/internal/shared"
)

// CatalogPort is the slice of the catalog the workflow needs.
type CatalogPort interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
	DispensableLevel(ctx context.Context, productID, levelID int64) (catalog.PackagingLevel, error)
}

// LedgerPort provides the FEFO-ordered eligible batches.
type LedgerPort interface {
	AvailableBatches(ctx context.Context, productID int64) ([]ledger.Batch, error)
}

// RepositoryPort abstracts record persistence and the atomic plan commit.
type RepositoryPort interface {
	Commit(ctx context.Context, record Record, plan Plan) (Record, error)
	ListByProduct(ctx context.Context, productID int64, limit int) ([]Record, error)
	ConsumedByBatch(ctx context.Context, batchID int64) (decimal.Decimal, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts dispensing outcomes.
type MetricsPort interface {
	DispenseOutcome(outcome string)
	AllocationConflict()
}

// ServiceConfig groups tunables.
type ServiceConfig struct {
	// MaxRetries bounds replanning after a concurrent allocation conflict.
	MaxRetries int
}

// Service runs the end-to-end dispense operation: validate, resolve, plan,
// commit, record.
type Service struct {
	catalog  CatalogPort
	ledger   LedgerPort
	repo     RepositoryPort
	resolver catalog.Resolver
	audit    AuditPort
	metrics  MetricsPort
	retries  int
	now      func() time.Time
}

// NewService builds the dispensing service.
func NewService(cat CatalogPort, led LedgerPort, repo RepositoryPort, audit AuditPort, metrics MetricsPort, cfg ServiceConfig) *Service {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Service{
		catalog:  cat,
		ledger:   led,
		repo:     repo,
		resolver: catalog.NewResolver(),
		audit:    audit,
		metrics:  metrics,
		retries:  retries,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// DispenseInput describes "sell N units of product P at packaging level L".
type DispenseInput struct {
	ProductID       int64
	LevelID         int64
	Quantity        decimal.Decimal
	PatientName     string
	PrescriberName  string
	PrescriptionRef string
	ActorID         int64
}

// Dispense fulfils the request or fails with one typed error; on failure no
// batch is left partially debited. Only concurrent allocation conflicts are
// retried, and only up to the configured bound.
func (s *Service) Dispense(ctx context.Context, input DispenseInput) (Record, error) {
	if input.Quantity.Sign() <= 0 {
		s.countOutcome("invalid")
		return Record{}, ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		s.countOutcome("invalid")
		return Record{}, err
	}
	if product.RequiresPrescription {
		if strings.TrimSpace(input.PatientName) == "" || strings.TrimSpace(input.PrescriberName) == "" {
			s.countOutcome("prescription_required")
			return Record{}, ErrPrescriptionRequired
		}
	}

	level, err := s.catalog.DispensableLevel(ctx, input.ProductID, input.LevelID)
	if err != nil {
		s.countOutcome("invalid")
		return Record{}, err
	}
	baseUnits, err := s.resolver.ToBaseUnits(level, input.Quantity)
	if err != nil {
		s.countOutcome("invalid")
		return Record{}, err
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		batches, err := s.ledger.AvailableBatches(ctx, input.ProductID)
		if err != nil {
			return Record{}, err
		}
		plan, err := BuildPlan(input.ProductID, batches, baseUnits)
		if err != nil {
			s.countOutcome("insufficient_stock")
			return Record{}, err
		}

		record := Record{
			Reference:       uuid.NewString(),
			ProductID:       input.ProductID,
			LevelID:         level.ID,
			QuantityUnits:   input.Quantity,
			UnitPrice:       level.SellingPrice,
			TotalPrice:      input.Quantity.Mul(level.SellingPrice),
			BaseUnits:       baseUnits,
			PatientName:     input.PatientName,
			PrescriberName:  input.PrescriberName,
			PrescriptionRef: input.PrescriptionRef,
			DispensedBy:     input.ActorID,
			DispensedAt:     s.now(),
		}

		committed, err := s.repo.Commit(ctx, record, plan)
		if err == nil {
			s.countOutcome("ok")
			s.recordAudit(ctx, committed)
			return committed, nil
		}
		if errors.Is(err, ledger.ErrConcurrentConflict) {
			if s.metrics != nil {
				s.metrics.AllocationConflict()
			}
			lastErr = err
			continue
		}
		s.countOutcome("error")
		return Record{}, err
	}

	s.countOutcome("conflict")
	return Record{}, lastErr
}

// ListByProduct returns committed records for reporting consumers.
func (s *Service) ListByProduct(ctx context.Context, productID int64, limit int) ([]Record, error) {
	if productID <= 0 {
		return nil, errors.New("dispensing: product required")
	}
	return s.repo.ListByProduct(ctx, productID, limit)
}

// ConsumedByBatch sums committed consumption against a batch.
func (s *Service) ConsumedByBatch(ctx context.Context, batchID int64) (decimal.Decimal, error) {
	if batchID <= 0 {
		return decimal.Zero, errors.New("dispensing: batch required")
	}
	return s.repo.ConsumedByBatch(ctx, batchID)
}

func (s *Service) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.DispenseOutcome(outcome)
	}
}

func (s *Service) recordAudit(ctx context.Context, rec Record) {
	if s.audit == nil {
		return
	}
	batches := make([]map[string]any, 0, len(rec.Items))
	for _, item := range rec.Items {
		batches = append(batches, map[string]any{"batch_id": item.BatchID, "base_units": item.BaseUnits.String()})
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  rec.DispensedBy,
		Action:   "dispensing:commit",
		Entity:   "dispensing_record",
		EntityID: rec.Reference,
		Meta: map[string]any{
			"product_id":  rec.ProductID,
			"level_id":    rec.LevelID,
			"base_units":  rec.BaseUnits.String(),
			"total_price": rec.TotalPrice.String(),
			"batches":     batches,
		},
	})
}
