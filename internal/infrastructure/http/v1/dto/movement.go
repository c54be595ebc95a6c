package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/movement"
	"factoryledger/internal/domain/posting"
)

// MovementListQuery are the GET /movements query parameters.
type MovementListQuery struct {
	ItemType     string     `form:"itemType"`
	ItemID       string     `form:"itemId"`
	MovementType string     `form:"movementType"`
	From         *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To           *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit        int        `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset       int        `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter validates enum values and builds the domain filter.
func (q MovementListQuery) ToFilter() (movement.Filter, error) {
	f := movement.Filter{From: q.From, To: q.To, Limit: q.Limit, Offset: q.Offset}
	if q.ItemType != "" {
		t, err := entity.ParseItemType(q.ItemType)
		if err != nil {
			return f, err
		}
		f.ItemType = &t
	}
	if q.ItemID != "" {
		f.ItemID = &q.ItemID
	}
	if q.MovementType != "" {
		mt := entity.MovementType(q.MovementType)
		if !mt.Valid() {
			return f, apperror.NewValidation("movementType must be one of in, out, adjustment").
				WithDetail("field", "movementType")
		}
		f.MovementType = &mt
	}
	return f, nil
}

// AdjustStockRequest is a manual stock correction.
type AdjustStockRequest struct {
	ItemType string          `json:"itemType" binding:"required"`
	ItemID   string          `json:"itemId" binding:"required"`
	Delta    decimal.Decimal `json:"delta"`
	Reason   string          `json:"reason"`
}

// ToInput converts to the domain input.
func (r AdjustStockRequest) ToInput() (posting.AdjustInput, error) {
	t, err := entity.ParseItemType(r.ItemType)
	if err != nil {
		return posting.AdjustInput{}, err
	}
	return posting.AdjustInput{ItemType: t, ItemID: r.ItemID, Delta: r.Delta, Reason: r.Reason}, nil
}
