package posting

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/movement"
	"factoryledger/pkg/logger"
)

// AdjustInput is a manual stock correction. Delta is signed.
type AdjustInput struct {
	ItemType entity.ItemType
	ItemID   string
	Delta    decimal.Decimal
	Reason   string
}

// Adjust changes on-hand stock by Delta and records an adjustment movement
// carrying the resulting balance, both in one transaction.
func (t *Translator) Adjust(ctx context.Context, in AdjustInput) (ItemResult, error) {
	if !in.ItemType.Valid() {
		return ItemResult{}, apperror.NewValidation(fmt.Sprintf("unknown item type %q", in.ItemType)).
			WithDetail("field", "itemType")
	}
	if in.ItemID == "" {
		return ItemResult{}, apperror.NewValidation("item id is required").WithDetail("field", "itemId")
	}
	if in.Delta.IsZero() {
		return ItemResult{}, apperror.NewValidation("adjustment must change the quantity").WithDetail("field", "delta")
	}
	reason := in.Reason
	if reason == "" {
		reason = "Manual adjustment"
	}

	res := ItemResult{
		ItemType:     in.ItemType,
		ItemID:       in.ItemID,
		MovementType: entity.MovementAdjustment,
		Quantity:     in.Delta.Abs(),
	}
	err := t.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		balance, err := t.stock.AdjustQuantity(ctx, in.ItemType, in.ItemID, in.Delta)
		if err != nil {
			return err
		}
		res.BalanceAfter = &balance
		return t.recorder.Record(ctx, movement.Input{
			ItemID:       in.ItemID,
			ItemType:     in.ItemType,
			MovementType: entity.MovementAdjustment,
			Quantity:     res.Quantity,
			BalanceAfter: balance,
			Reason:       reason,
		})
	})
	if err != nil {
		logger.Warn(ctx, "stock adjustment rejected",
			"item_type", in.ItemType, "item_id", in.ItemID, "delta", in.Delta, "error", err)
		return ItemResult{}, apperror.Wrap(err)
	}

	res.Status = ItemRecorded
	logger.Info(ctx, "stock adjusted",
		"item_type", in.ItemType, "item_id", in.ItemID, "delta", in.Delta, "balance_after", res.BalanceAfter)
	return res, nil
}
