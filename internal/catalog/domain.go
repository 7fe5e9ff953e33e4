package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a dispensable drug identity. GenericName, Strength and DosageForm
// are frozen once the first batch references the product so historical
// dispensing records stay traceable.
type Product struct {
	ID                    int64
	GenericName           string
	Strength              string
	DosageForm            string
	RequiresPrescription  bool
	IsControlledSubstance bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PackagingLevel is a named multiple of base units belonging to one product.
// LevelOrder 1 is the smallest dispensable unit and always carries
// BaseUnitQty = 1; higher orders must not shrink.
type PackagingLevel struct {
	ID            int64
	ProductID     int64
	LevelOrder    int
	BaseUnitQty   decimal.Decimal
	UnitOfMeasure string
	CostPrice     decimal.Decimal
	SellingPrice  decimal.Decimal
	CanDispense   bool
	CanPurchase   bool
}

// ErrNotFound indicates a missing product.
var ErrNotFound = errors.New("catalog: product not found")

// ErrValidation wraps field-level validation failures.
var ErrValidation = errors.New("catalog: validation failed")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("catalog: quantity must be positive")

// ErrUnknownLevel indicates the level does not belong to the product.
var ErrUnknownLevel = errors.New("catalog: packaging level does not belong to product")

// ErrLevelOrderConflict indicates duplicate level_order values for a product.
var ErrLevelOrderConflict = errors.New("catalog: duplicate level order")

// ErrBaseQtyNotMonotonic indicates a higher level holding fewer base units than a lower one.
var ErrBaseQtyNotMonotonic = errors.New("catalog: base unit quantity must not decrease with level order")

// ErrBaseLevelNotUnit indicates level order 1 with base quantity other than one.
var ErrBaseLevelNotUnit = errors.New("catalog: level order 1 must hold exactly one base unit")

// ErrProductImmutable indicates an identity edit after the first batch was received.
var ErrProductImmutable = errors.New("catalog: product identity is frozen after first batch receipt")

// ErrNoDispensableLevel indicates no packaging level allows dispensing.
var ErrNoDispensableLevel = errors.New("catalog: product has no dispensable packaging level")

// ErrNoPurchasableLevel indicates no packaging level allows purchasing.
var ErrNoPurchasableLevel = errors.New("catalog: product has no purchasable packaging level")
