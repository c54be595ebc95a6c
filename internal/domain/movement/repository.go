// Package movement records and queries inventory movements.
package movement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/entity"
)

// Repository persists movements.
type Repository interface {
	// Insert appends one movement row. No other table is touched.
	Insert(ctx context.Context, m entity.InventoryMovement) error

	// List returns movements matching filter, newest first.
	List(ctx context.Context, filter Filter) ([]entity.InventoryMovement, error)

	// Totals sums abs(quantity) per movement type and item type since the given instant.
	Totals(ctx context.Context, since time.Time) ([]Total, error)

	// ListByItem returns every movement of one item, oldest first.
	ListByItem(ctx context.Context, itemType entity.ItemType, itemID string) ([]entity.InventoryMovement, error)
}

// ItemReader reads the stored on-hand quantity of an item.
type ItemReader interface {
	GetItem(ctx context.Context, itemType entity.ItemType, itemID string) (entity.StockItem, error)
}

// Filter narrows movement listings. Zero values mean "no constraint".
type Filter struct {
	ItemType     *entity.ItemType
	ItemID       *string
	MovementType *entity.MovementType
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// Total is one grouped row of Totals.
type Total struct {
	MovementType entity.MovementType `db:"movement_type"`
	ItemType     entity.ItemType     `db:"item_type"`
	Quantity     decimal.Decimal     `db:"quantity"`
	Count        int                 `db:"count"`
}
