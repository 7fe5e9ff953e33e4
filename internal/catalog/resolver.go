package catalog

import "github.com/shopspring/decimal"

// Resolver converts between packaging-level quantities and base units.
// Pure arithmetic; the ledger stores base units only, so ToBaseUnits is the
// single place a level quantity becomes ledger arithmetic.
type Resolver struct{}

// NewResolver returns a Resolver.
func NewResolver() Resolver {
	return Resolver{}
}

// ToBaseUnits converts quantity expressed in the given level's units to base units.
func (Resolver) ToBaseUnits(level PackagingLevel, quantity decimal.Decimal) (decimal.Decimal, error) {
	if quantity.Sign() <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	return quantity.Mul(level.BaseUnitQty), nil
}

// FromBaseUnits converts base units back to the level's units. Display and
// rounding only; never feed the result back into ledger arithmetic.
func (Resolver) FromBaseUnits(level PackagingLevel, baseUnits decimal.Decimal) (decimal.Decimal, error) {
	if baseUnits.Sign() < 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	if level.BaseUnitQty.Sign() <= 0 {
		return decimal.Zero, ErrUnknownLevel
	}
	return baseUnits.DivRound(level.BaseUnitQty, 6), nil
}

// UnitCostInBase derives the base-unit cost from a cost quoted at this level.
func (Resolver) UnitCostInBase(level PackagingLevel, levelCost decimal.Decimal) (decimal.Decimal, error) {
	if level.BaseUnitQty.Sign() <= 0 {
		return decimal.Zero, ErrUnknownLevel
	}
	return levelCost.DivRound(level.BaseUnitQty, 6), nil
}

// LevelFor picks the level with the given id out of a product's levels.
func LevelFor(levels []PackagingLevel, levelID int64) (PackagingLevel, error) {
	for _, lvl := range levels {
		if lvl.ID == levelID {
			return lvl, nil
		}
	}
	return PackagingLevel{}, ErrUnknownLevel
}
