// Package types provides the numeric types used for stock and money.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// Quantity is an on-hand or moved amount of stock (kg, pcs, litres).
// Fractional quantities are common for raw materials, so it is a decimal too.
type Quantity = decimal.Decimal

// MustDecimal parses s and panics on error. Use only for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Zero returns the zero decimal.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Hundred is the percentage denominator.
var Hundred = decimal.NewFromInt(100)

// SafeDiv returns num/den, or zero when den is zero.
func SafeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
