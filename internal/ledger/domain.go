package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus enumerates the batch lifecycle states.
type BatchStatus string

const (
	// StatusQuarantine is the initial state pending QC.
	StatusQuarantine BatchStatus = "QUARANTINE"
	// StatusApproved allows allocation.
	StatusApproved BatchStatus = "APPROVED"
	// StatusRejected is terminal; QC failed.
	StatusRejected BatchStatus = "REJECTED"
	// StatusDepleted is set automatically when quantity reaches zero.
	StatusDepleted BatchStatus = "DEPLETED"
	// StatusExpired marks approved stock past its expiry date. Kept for audit,
	// never allocated.
	StatusExpired BatchStatus = "EXPIRED"
)

// Batch is a physically received lot of a product. Quantities are tracked in
// base units only; CurrentQuantity moves solely through Debit.
type Batch struct {
	ID               int64
	ProductID        int64
	BatchNumber      string
	LotNumber        string
	ManufactureDate  time.Time
	ExpiryDate       time.Time
	QuantityReceived decimal.Decimal
	CurrentQuantity  decimal.Decimal
	UnitCost         decimal.Decimal
	WarehouseRef     string
	Status           BatchStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Expired reports whether the batch is past its expiry date at the given time.
func (b Batch) Expired(now time.Time) bool {
	return !b.ExpiryDate.After(now)
}

// Allocatable reports FEFO eligibility: approved, stock on hand, not expired.
func (b Batch) Allocatable(now time.Time) bool {
	return b.Status == StatusApproved && b.CurrentQuantity.Sign() > 0 && b.ExpiryDate.After(now)
}

// CreateBatchInput carries everything needed to register a received batch.
type CreateBatchInput struct {
	ProductID       int64
	BatchNumber     string
	LotNumber       string
	ManufactureDate time.Time
	ExpiryDate      time.Time
	BaseUnits       decimal.Decimal
	UnitCost        decimal.Decimal
	WarehouseRef    string
}

// ErrBatchNotFound indicates a missing batch.
var ErrBatchNotFound = errors.New("ledger: batch not found")

// ErrValidation wraps field-level validation failures.
var ErrValidation = errors.New("ledger: validation failed")

// ErrDuplicateBatchNumber indicates the batch number already exists for the product.
var ErrDuplicateBatchNumber = errors.New("ledger: duplicate batch number for product")

// ErrInvalidDateRange indicates expiry not strictly after manufacture and receipt.
var ErrInvalidDateRange = errors.New("ledger: expiry date must be after manufacture and receipt dates")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrInvalidStateTransition indicates a transition the state machine forbids.
var ErrInvalidStateTransition = errors.New("ledger: invalid batch state transition")

// ErrInsufficientQuantity indicates a debit larger than the batch holds.
var ErrInsufficientQuantity = errors.New("ledger: debit exceeds current quantity")

// ErrConcurrentConflict indicates the stored quantity no longer matches the
// quantity observed during planning.
var ErrConcurrentConflict = errors.New("ledger: concurrent allocation conflict")
