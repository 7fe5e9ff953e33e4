package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

func validateProduct(p Product) error {
	if strings.TrimSpace(p.GenericName) == "" {
		return fmt.Errorf("%w: generic name is required", ErrValidation)
	}
	if strings.TrimSpace(p.DosageForm) == "" {
		return fmt.Errorf("%w: dosage form is required", ErrValidation)
	}
	return nil
}

var one = decimal.NewFromInt(1)

func validateLevels(levels []PackagingLevel) error {
	if len(levels) == 0 {
		return fmt.Errorf("%w: at least one packaging level is required", ErrValidation)
	}
	sorted := make([]PackagingLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LevelOrder < sorted[j].LevelOrder })

	prevQty := decimal.Zero
	for i, lvl := range sorted {
		if lvl.LevelOrder <= 0 {
			return fmt.Errorf("%w: level order must be positive", ErrValidation)
		}
		if i > 0 && lvl.LevelOrder == sorted[i-1].LevelOrder {
			return ErrLevelOrderConflict
		}
		if lvl.BaseUnitQty.Sign() <= 0 {
			return ErrInvalidQuantity
		}
		if lvl.LevelOrder == 1 && !lvl.BaseUnitQty.Equal(one) {
			return ErrBaseLevelNotUnit
		}
		if strings.TrimSpace(lvl.UnitOfMeasure) == "" {
			return fmt.Errorf("%w: unit of measure is required", ErrValidation)
		}
		if lvl.CostPrice.Sign() < 0 || lvl.SellingPrice.Sign() < 0 {
			return fmt.Errorf("%w: prices must not be negative", ErrValidation)
		}
		if lvl.BaseUnitQty.LessThan(prevQty) {
			return ErrBaseQtyNotMonotonic
		}
		prevQty = lvl.BaseUnitQty
	}
	return nil
}
