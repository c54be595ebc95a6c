package movement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	appctx "factoryledger/internal/core/context"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/id"
	"factoryledger/internal/core/notify"
	"factoryledger/pkg/logger"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Input describes one stock change to record.
// BalanceAfter is computed by the caller; the recorder never reads the item.
type Input struct {
	ItemID       string
	ItemType     entity.ItemType
	MovementType entity.MovementType
	Quantity     decimal.Decimal
	BalanceAfter decimal.Decimal
	Reason       string

	ReferenceType string
	ReferenceID   string
	Direction     entity.Direction
}

// Service records movements and answers read-side queries over them.
type Service struct {
	repo     Repository
	items    ItemReader
	notifier notify.Notifier
	now      func() time.Time
}

// NewService creates a movement service. items may be nil when VerifyItem is not needed.
func NewService(repo Repository, items ItemReader, notifier notify.Notifier) *Service {
	return &Service{
		repo:     repo,
		items:    items,
		notifier: notifier,
		now:      time.Now,
	}
}

// Record appends one movement. Quantity is stored as a magnitude.
// A persistence failure is logged and returned; it is not retried.
func (s *Service) Record(ctx context.Context, in Input) error {
	if in.ItemID == "" {
		return apperror.NewValidation("item id is required").WithDetail("field", "itemId")
	}
	if !in.ItemType.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown item type %q", in.ItemType)).
			WithDetail("field", "itemType")
	}
	if !in.MovementType.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown movement type %q", in.MovementType)).
			WithDetail("field", "movementType")
	}

	m := entity.InventoryMovement{
		ID:           id.NewString(),
		ItemID:       in.ItemID,
		ItemType:     in.ItemType,
		MovementType: in.MovementType,
		Quantity:     in.Quantity.Abs(),
		BalanceAfter: in.BalanceAfter,
		Reason:       in.Reason,
		CreatedAt:    s.now().UTC(),
	}
	if in.ReferenceType != "" && in.ReferenceID != "" {
		refType, refID, dir := in.ReferenceType, in.ReferenceID, in.Direction
		if dir == "" {
			dir = entity.DirectionForward
		}
		m.ReferenceType, m.ReferenceID, m.Direction = &refType, &refID, &dir
	}
	if userID := appctx.GetUserID(ctx); userID != "" {
		m.UserID = &userID
	}

	if err := s.repo.Insert(ctx, m); err != nil {
		logger.Error(ctx, "failed to record movement",
			"item_id", in.ItemID,
			"item_type", in.ItemType,
			"movement_type", in.MovementType,
			"error", err,
		)
		return fmt.Errorf("insert movement: %w", err)
	}

	logger.Debug(ctx, "movement recorded",
		"item_id", m.ItemID,
		"item_type", m.ItemType,
		"movement_type", m.MovementType,
		"quantity", m.Quantity,
		"balance_after", m.BalanceAfter,
	)
	return nil
}

// RecordIncoming records an "in" movement.
func (s *Service) RecordIncoming(ctx context.Context, itemType entity.ItemType, itemID string, quantity, balanceAfter decimal.Decimal, reason string) error {
	return s.Record(ctx, Input{
		ItemID: itemID, ItemType: itemType, MovementType: entity.MovementIn,
		Quantity: quantity.Abs(), BalanceAfter: balanceAfter, Reason: reason,
	})
}

// RecordOutgoing records an "out" movement.
func (s *Service) RecordOutgoing(ctx context.Context, itemType entity.ItemType, itemID string, quantity, balanceAfter decimal.Decimal, reason string) error {
	return s.Record(ctx, Input{
		ItemID: itemID, ItemType: itemType, MovementType: entity.MovementOut,
		Quantity: quantity.Abs(), BalanceAfter: balanceAfter, Reason: reason,
	})
}

// RecordAdjustment records an "adjustment" movement.
func (s *Service) RecordAdjustment(ctx context.Context, itemType entity.ItemType, itemID string, quantity, balanceAfter decimal.Decimal, reason string) error {
	return s.Record(ctx, Input{
		ItemID: itemID, ItemType: itemType, MovementType: entity.MovementAdjustment,
		Quantity: quantity.Abs(), BalanceAfter: balanceAfter, Reason: reason,
	})
}

// List returns movements newest first. Failures yield an empty list and a notification.
func (s *Service) List(ctx context.Context, filter Filter) []entity.InventoryMovement {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	movements, err := s.repo.List(ctx, filter)
	if err != nil {
		logger.Error(ctx, "failed to list movements", "error", err)
		notify.Error(ctx, s.notifier, "Inventory movements", "Could not load movement history")
		return []entity.InventoryMovement{}
	}
	if movements == nil {
		movements = []entity.InventoryMovement{}
	}
	return movements
}
