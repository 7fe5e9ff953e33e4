package dispensing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Allocation is one planned (batch, amount) pair. Observed carries the batch
// quantity seen at planning time; the ledger debit verifies it at commit.
type Allocation struct {
	BatchID     int64
	BatchNumber string
	ExpiryDate  time.Time
	BaseUnits   decimal.Decimal
	Observed    decimal.Decimal
}

// Plan is a computed, not-yet-committed allocation covering a full request.
type Plan struct {
	ProductID   int64
	Requested   decimal.Decimal
	Allocations []Allocation
}

// RecordItem ties a committed record to the base units consumed from one batch.
type RecordItem struct {
	ID       int64
	RecordID int64
	BatchID  int64
	// BaseUnits consumed from the batch.
	BaseUnits decimal.Decimal
}

// Record is the immutable audit entry a successful dispense produces.
// Reversals are modelled as new compensating records, never edits.
type Record struct {
	ID              int64
	Reference       string
	ProductID       int64
	LevelID         int64
	QuantityUnits   decimal.Decimal
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
	BaseUnits       decimal.Decimal
	PatientName     string
	PrescriberName  string
	PrescriptionRef string
	DispensedBy     int64
	DispensedAt     time.Time
	Items           []RecordItem
}

// ErrInvalidQuantity indicates a non-positive requested quantity.
var ErrInvalidQuantity = errors.New("dispensing: quantity must be positive")

// ErrPrescriptionRequired indicates missing patient/prescriber fields for a
// prescription-only product.
var ErrPrescriptionRequired = errors.New("dispensing: prescription details required")

// ErrInsufficientStock indicates the product cannot cover the request across
// all eligible batches.
var ErrInsufficientStock = errors.New("dispensing: insufficient stock")

// InsufficientStockError carries the shortfall detail for the caller.
type InsufficientStockError struct {
	ProductID int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("dispensing: insufficient stock for product %d: requested %s, available %s", e.ProductID, e.Requested, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
