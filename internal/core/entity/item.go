package entity

import (
	"github.com/shopspring/decimal"

	"factoryledger/internal/core/types"
)

// StockItem is the shape shared by the four item tables.
type StockItem struct {
	ID       string         `db:"id" json:"id"`
	Type     ItemType       `db:"-" json:"type"`
	Name     string         `db:"name" json:"name"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	UnitCost types.Money    `db:"unit_cost" json:"unitCost"`
	MinStock types.Quantity `db:"min_stock" json:"minStock"`
}

// IsLow reports whether on-hand quantity has reached the reorder threshold.
func (s StockItem) IsLow() bool {
	return s.Quantity.LessThanOrEqual(s.MinStock)
}

// Ingredient is one weighted raw material of a semi-finished product.
// Percentages are not required to sum to 100.
type Ingredient struct {
	SemiFinishedID string          `db:"semi_finished_id" json:"semiFinishedId"`
	RawMaterialID  string          `db:"raw_material_id" json:"rawMaterialId"`
	Percentage     decimal.Decimal `db:"percentage" json:"percentage"`
	UnitCost       types.Money     `db:"unit_cost" json:"unitCost"`
}

// PackagingUsage is the per-unit consumption of one packaging material.
type PackagingUsage struct {
	FinishedProductID   string         `db:"finished_product_id" json:"finishedProductId"`
	PackagingMaterialID string         `db:"packaging_material_id" json:"packagingMaterialId"`
	Quantity            types.Quantity `db:"quantity" json:"quantity"`
	UnitCost            types.Money    `db:"unit_cost" json:"unitCost"`
}

// SemiFinishedProduct is a stock item with its recipe.
type SemiFinishedProduct struct {
	StockItem
	Ingredients []Ingredient `json:"ingredients"`
}

// FinishedProduct is a stock item assembled from one semi-finished product and packaging.
type FinishedProduct struct {
	StockItem
	SemiFinishedID       string           `db:"semi_finished_id" json:"semiFinishedId"`
	SemiFinishedQuantity types.Quantity   `db:"semi_finished_quantity" json:"semiFinishedQuantity"`
	Packaging            []PackagingUsage `json:"packaging"`
}
