// Package ledger keeps party running balances consistent with their ledger entries.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/entity"
)

// Repository persists parties, ledger entries and derived party balances.
type Repository interface {
	ListParties(ctx context.Context) ([]entity.Party, error)
	GetParty(ctx context.Context, id string) (entity.Party, error)

	// ListEntries returns a party's entries by date ascending, ties broken by creation order.
	ListEntries(ctx context.Context, partyID string) ([]entity.LedgerEntry, error)
	InsertEntry(ctx context.Context, e entity.LedgerEntry) error
	UpdateEntryBalances(ctx context.Context, updates []EntryBalance) error

	// ListPartyBalances returns every balance row of a party, oldest first.
	ListPartyBalances(ctx context.Context, partyID string) ([]entity.PartyBalance, error)
	DeletePartyBalances(ctx context.Context, ids []string) error
	UpsertPartyBalance(ctx context.Context, partyID string, balance decimal.Decimal, at time.Time) error

	// LockParty serializes balance writes for one party until the transaction ends.
	LockParty(ctx context.Context, partyID string) error
}

// EntryBalance is a corrected balance_after for one entry.
type EntryBalance struct {
	EntryID      string
	BalanceAfter decimal.Decimal
}
