package posting

import (
	"github.com/shopspring/decimal"

	"factoryledger/internal/core/entity"
)

// ItemStatus is the outcome of one posting line.
type ItemStatus string

const (
	ItemRecorded ItemStatus = "recorded"
	ItemSkipped  ItemStatus = "skipped"
	ItemFailed   ItemStatus = "failed"
)

// ItemResult is the outcome of moving one item.
type ItemResult struct {
	ItemType     entity.ItemType     `json:"itemType"`
	ItemID       string              `json:"itemId"`
	MovementType entity.MovementType `json:"movementType"`
	Quantity     decimal.Decimal     `json:"quantity"`
	Direction    entity.Direction    `json:"direction"`
	Status       ItemStatus          `json:"status"`
	BalanceAfter *decimal.Decimal    `json:"balanceAfter,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Report describes what one status transition did to stock.
type Report struct {
	ReferenceType string           `json:"referenceType"`
	ReferenceID   string           `json:"referenceId"`
	Direction     entity.Direction `json:"direction,omitempty"`
	// Triggered is false when the transition did not cross the posting boundary.
	Triggered bool `json:"triggered"`
	// Duplicate is true when the same posting was already in effect.
	Duplicate bool `json:"duplicate"`
	// Stale is true when the document's stored status no longer matches the transition.
	Stale bool         `json:"stale"`
	Items []ItemResult `json:"items"`
}

// Count returns the number of lines with the given status.
func (r Report) Count(status ItemStatus) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == status {
			n++
		}
	}
	return n
}

// Problems returns skipped and failed lines.
func (r Report) Problems() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Status != ItemRecorded {
			out = append(out, it)
		}
	}
	return out
}
