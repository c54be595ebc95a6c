package entity

import (
	"time"

	"factoryledger/internal/core/types"
)

// OrderStatus is shared by production and packaging orders.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderInProgress, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// OrderLine is one material an order consumes.
type OrderLine struct {
	ItemID           string         `db:"item_id" json:"itemId"`
	RequiredQuantity types.Quantity `db:"required_quantity" json:"requiredQuantity"`
}

// ProductionOrder turns raw-material ingredients into a semi-finished product.
type ProductionOrder struct {
	ID          string         `db:"id" json:"id"`
	Code        string         `db:"code" json:"code"`
	ProductID   string         `db:"product_id" json:"productId"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Status      OrderStatus    `db:"status" json:"status"`
	TotalCost   types.Money    `db:"total_cost" json:"totalCost"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	Ingredients []OrderLine    `json:"ingredients"`
}

// PackagingOrder turns semi-finished stock and packaging materials into finished products.
type PackagingOrder struct {
	ID                   string         `db:"id" json:"id"`
	Code                 string         `db:"code" json:"code"`
	FinishedProductID    string         `db:"finished_product_id" json:"finishedProductId"`
	SemiFinishedID       string         `db:"semi_finished_id" json:"semiFinishedId"`
	SemiFinishedQuantity types.Quantity `db:"semi_finished_quantity" json:"semiFinishedQuantity"`
	Quantity             types.Quantity `db:"quantity" json:"quantity"`
	Status               OrderStatus    `db:"status" json:"status"`
	TotalCost            types.Money    `db:"total_cost" json:"totalCost"`
	CreatedAt            time.Time      `db:"created_at" json:"createdAt"`
	Materials            []OrderLine    `json:"materials"`
}
