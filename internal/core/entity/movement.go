// Package entity provides the records the ledger services read and write.
package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/types"
)

// ItemType is the closed set of stock-holding item kinds.
type ItemType string

const (
	ItemTypeRaw       ItemType = "raw"
	ItemTypeSemi      ItemType = "semi"
	ItemTypePackaging ItemType = "packaging"
	ItemTypeFinished  ItemType = "finished"
)

// ItemTypes lists every kind in roll-up order.
var ItemTypes = []ItemType{ItemTypeRaw, ItemTypeSemi, ItemTypePackaging, ItemTypeFinished}

// Valid reports whether t is one of the known kinds.
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeRaw, ItemTypeSemi, ItemTypePackaging, ItemTypeFinished:
		return true
	}
	return false
}

// ParseItemType accepts the canonical tags plus the long table-style aliases
// that invoice and return lines carry.
func ParseItemType(s string) (ItemType, error) {
	switch s {
	case "raw", "raw_material", "raw_materials":
		return ItemTypeRaw, nil
	case "semi", "semi_finished", "semi_finished_products":
		return ItemTypeSemi, nil
	case "packaging", "packaging_material", "packaging_materials":
		return ItemTypePackaging, nil
	case "finished", "finished_product", "finished_products":
		return ItemTypeFinished, nil
	}
	return "", apperror.NewValidation(fmt.Sprintf("unknown item type %q", s)).
		WithDetail("field", "itemType")
}

// MovementType carries the direction of a stock change.
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
)

// Valid reports whether m is a known movement type.
func (m MovementType) Valid() bool {
	return m == MovementIn || m == MovementOut || m == MovementAdjustment
}

// Opposite swaps in and out. Adjustments have no mirror.
func (m MovementType) Opposite() MovementType {
	switch m {
	case MovementIn:
		return MovementOut
	case MovementOut:
		return MovementIn
	}
	return m
}

// Sign returns +1 for in, -1 for out and 0 for adjustments.
func (m MovementType) Sign() int {
	switch m {
	case MovementIn:
		return 1
	case MovementOut:
		return -1
	}
	return 0
}

// Direction marks whether a posting applies or undoes a business transition.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirectionForward {
		return DirectionReverse
	}
	return DirectionForward
}

// InventoryMovement is one immutable stock change for one item.
// Quantity is always a magnitude; MovementType carries the sign.
type InventoryMovement struct {
	ID           string         `db:"id" json:"id"`
	ItemID       string         `db:"item_id" json:"itemId"`
	ItemType     ItemType       `db:"item_type" json:"itemType"`
	MovementType MovementType   `db:"movement_type" json:"movementType"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`
	BalanceAfter types.Quantity `db:"balance_after" json:"balanceAfter"`
	Reason       string         `db:"reason" json:"reason"`

	// ReferenceType and ReferenceID link a movement to the business object
	// whose transition produced it (production_order, invoice, ...).
	// Manual movements leave them empty.
	ReferenceType *string    `db:"reference_type" json:"referenceType,omitempty"`
	ReferenceID   *string    `db:"reference_id" json:"referenceId,omitempty"`
	Direction     *Direction `db:"direction" json:"direction,omitempty"`

	UserID    *string   `db:"user_id" json:"userId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// SignedQuantity returns the delta this movement applied to on-hand stock.
// Adjustments return zero; replay uses BalanceAfter for them.
func (m InventoryMovement) SignedQuantity() decimal.Decimal {
	switch m.MovementType {
	case MovementIn:
		return m.Quantity.Abs()
	case MovementOut:
		return m.Quantity.Abs().Neg()
	}
	return decimal.Zero
}

// Replay folds movements (oldest first) onto start.
// An adjustment sets the running quantity to its recorded balance.
func Replay(start decimal.Decimal, movements []InventoryMovement) decimal.Decimal {
	qty := start
	for _, m := range movements {
		if m.MovementType == MovementAdjustment {
			qty = m.BalanceAfter
			continue
		}
		qty = qty.Add(m.SignedQuantity())
	}
	return qty
}
