// Package costing rolls raw-material and packaging costs up into semi-finished
// and finished product unit costs.
package costing

import (
	"github.com/shopspring/decimal"

	"factoryledger/internal/core/types"
)

// WeightedCost is one ingredient of a semi-finished recipe.
type WeightedCost struct {
	UnitCost   decimal.Decimal
	Percentage decimal.Decimal
}

// MaterialCost is one packaging material consumed per finished unit.
type MaterialCost struct {
	UnitCost decimal.Decimal
	Quantity decimal.Decimal
}

// SemiFinishedCost returns Σ(percentage/100 * unitCost) * quantity.
// Percentages are not normalized and negative inputs are not rejected.
func SemiFinishedCost(ingredients []WeightedCost, quantity decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, in := range ingredients {
		sum = sum.Add(SafeRatio(in.Percentage, types.Hundred).Mul(in.UnitCost))
	}
	return sum.Mul(quantity)
}

// SemiFinishedUnitCost is SemiFinishedCost for one unit.
func SemiFinishedUnitCost(ingredients []WeightedCost) decimal.Decimal {
	return SemiFinishedCost(ingredients, decimal.NewFromInt(1))
}

// FinishedProductCost returns semiUnitCost * semiQtyPerUnit + Σ(material.unitCost * material.quantity).
func FinishedProductCost(semiUnitCost decimal.Decimal, materials []MaterialCost, semiQtyPerUnit decimal.Decimal) decimal.Decimal {
	total := semiUnitCost.Mul(semiQtyPerUnit)
	for _, m := range materials {
		total = total.Add(m.UnitCost.Mul(m.Quantity))
	}
	return total
}

// SafeRatio returns num/den, or zero when den is zero.
func SafeRatio(num, den decimal.Decimal) decimal.Decimal {
	return types.SafeDiv(num, den)
}
