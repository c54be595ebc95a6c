package costing

import (
	"context"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/entity"
)

// Repository reads cost entities and persists recomputed unit costs.
type Repository interface {
	GetItem(ctx context.Context, itemType entity.ItemType, itemID string) (entity.StockItem, error)

	// GetSemiFinished loads a product with its ingredients; Ingredient.UnitCost is the raw material's current cost.
	GetSemiFinished(ctx context.Context, id string) (entity.SemiFinishedProduct, error)

	// GetFinished loads a product with its packaging; PackagingUsage.UnitCost is the material's current cost.
	GetFinished(ctx context.Context, id string) (entity.FinishedProduct, error)

	SemiFinishedUsingRaw(ctx context.Context, rawMaterialID string) ([]string, error)
	FinishedUsingSemi(ctx context.Context, semiFinishedID string) ([]string, error)
	FinishedUsingPackaging(ctx context.Context, packagingID string) ([]string, error)

	UpdateUnitCost(ctx context.Context, itemType entity.ItemType, itemID string, unitCost decimal.Decimal) error

	// ListLow returns items whose quantity is at or below min_stock.
	ListLow(ctx context.Context, itemType entity.ItemType) ([]entity.StockItem, error)
}
