package ledger

import (
	"github.com/shopspring/decimal"

	"factoryledger/internal/core/entity"
)

// Replay accumulates debit-credit over entries starting from opening.
// It returns the final balance and the running total after each entry.
func Replay(opening decimal.Decimal, entries []entity.LedgerEntry) (decimal.Decimal, []decimal.Decimal) {
	running := opening
	totals := make([]decimal.Decimal, len(entries))
	for i, e := range entries {
		running = running.Add(e.Net())
		totals[i] = running
	}
	return running, totals
}
