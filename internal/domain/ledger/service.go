package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/id"
	"factoryledger/internal/core/tx"
	"factoryledger/pkg/logger"
)

// Service rebuilds and extends party ledgers.
type Service struct {
	repo      Repository
	txManager tx.Manager
	now       func() time.Time
}

// NewService creates a ledger service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager, now: time.Now}
}

// PartyError is a reconciliation failure for one party.
type PartyError struct {
	PartyID string `json:"partyId"`
	Error   string `json:"error"`
}

// ReconcileReport summarizes RecalculatePartyBalances.
type ReconcileReport struct {
	Parties       int          `json:"parties"`
	Reconciled    int          `json:"reconciled"`
	EntriesFixed  int          `json:"entriesFixed"`
	DuplicateRows int          `json:"duplicateRows"`
	Errors        []PartyError `json:"errors"`
}

// PartyResult is the outcome of reconciling one party.
type PartyResult struct {
	PartyID       string          `json:"partyId"`
	Balance       decimal.Decimal `json:"balance"`
	Entries       int             `json:"entries"`
	EntriesFixed  int             `json:"entriesFixed"`
	DuplicateRows int             `json:"duplicateRows"`
}

// RecalculatePartyBalances replays every party's ledger from its opening balance.
// Each party is reconciled in its own transaction; failures are collected, not fatal.
func (s *Service) RecalculatePartyBalances(ctx context.Context) (ReconcileReport, error) {
	report := ReconcileReport{Errors: []PartyError{}}

	parties, err := s.repo.ListParties(ctx)
	if err != nil {
		return report, apperror.NewInternal(fmt.Errorf("list parties: %w", err))
	}
	report.Parties = len(parties)

	for _, p := range parties {
		res, err := s.reconcile(ctx, p)
		if err != nil {
			logger.Warn(ctx, "party reconciliation failed", "party_id", p.ID, "error", err)
			report.Errors = append(report.Errors, PartyError{PartyID: p.ID, Error: err.Error()})
			continue
		}
		report.Reconciled++
		report.EntriesFixed += res.EntriesFixed
		report.DuplicateRows += res.DuplicateRows
	}

	logger.Info(ctx, "party balances recalculated",
		"parties", report.Parties,
		"reconciled", report.Reconciled,
		"entries_fixed", report.EntriesFixed,
		"errors", len(report.Errors),
	)
	return report, nil
}

// RecalculateParty reconciles a single party.
func (s *Service) RecalculateParty(ctx context.Context, partyID string) (PartyResult, error) {
	p, err := s.repo.GetParty(ctx, partyID)
	if err != nil {
		return PartyResult{}, err
	}
	res, err := s.reconcile(ctx, p)
	if err != nil {
		return PartyResult{}, apperror.Wrap(err)
	}
	return res, nil
}

func (s *Service) reconcile(ctx context.Context, p entity.Party) (PartyResult, error) {
	res := PartyResult{PartyID: p.ID}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockParty(ctx, p.ID); err != nil {
			return fmt.Errorf("lock party: %w", err)
		}

		rows, err := s.repo.ListPartyBalances(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("list party balances: %w", err)
		}
		if len(rows) > 1 {
			stray := make([]string, 0, len(rows)-1)
			for _, r := range rows[1:] {
				stray = append(stray, r.ID)
			}
			if err := s.repo.DeletePartyBalances(ctx, stray); err != nil {
				return fmt.Errorf("delete duplicate party balances: %w", err)
			}
			res.DuplicateRows = len(stray)
		}

		entries, err := s.repo.ListEntries(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("list ledger entries: %w", err)
		}
		final, totals := Replay(p.SignedOpeningBalance(), entries)

		var updates []EntryBalance
		for i, e := range entries {
			if !e.BalanceAfter.Equal(totals[i]) {
				updates = append(updates, EntryBalance{EntryID: e.ID, BalanceAfter: totals[i]})
			}
		}
		if len(updates) > 0 {
			if err := s.repo.UpdateEntryBalances(ctx, updates); err != nil {
				return fmt.Errorf("update entry balances: %w", err)
			}
		}

		if err := s.repo.UpsertPartyBalance(ctx, p.ID, final, s.now().UTC()); err != nil {
			return fmt.Errorf("upsert party balance: %w", err)
		}

		res.Balance = final
		res.Entries = len(entries)
		res.EntriesFixed = len(updates)
		return nil
	})
	return res, err
}

// AppendInput is a new ledger line.
type AppendInput struct {
	PartyID         string
	TransactionType string
	ReferenceID     string
	Date            time.Time
	Description     string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
}

// Append adds one entry after the party's current balance and updates that balance.
func (s *Service) Append(ctx context.Context, in AppendInput) (entity.LedgerEntry, error) {
	if in.PartyID == "" {
		return entity.LedgerEntry{}, apperror.NewValidation("party id is required").WithDetail("field", "partyId")
	}
	if in.Debit.IsNegative() || in.Credit.IsNegative() {
		return entity.LedgerEntry{}, apperror.NewValidation("debit and credit cannot be negative")
	}

	var entry entity.LedgerEntry
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetParty(ctx, in.PartyID)
		if err != nil {
			return err
		}
		if err := s.repo.LockParty(ctx, p.ID); err != nil {
			return fmt.Errorf("lock party: %w", err)
		}
		current, err := s.currentBalance(ctx, p)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		date := in.Date
		if date.IsZero() {
			date = now
		}
		entry = entity.LedgerEntry{
			ID:              id.NewString(),
			PartyID:         p.ID,
			TransactionType: in.TransactionType,
			Date:            date,
			Description:     in.Description,
			Debit:           in.Debit,
			Credit:          in.Credit,
			BalanceAfter:    current.Add(in.Debit).Sub(in.Credit),
			CreatedAt:       now,
		}
		if in.ReferenceID != "" {
			ref := in.ReferenceID
			entry.ReferenceID = &ref
		}

		if err := s.repo.InsertEntry(ctx, entry); err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
		if err := s.repo.UpsertPartyBalance(ctx, p.ID, entry.BalanceAfter, now); err != nil {
			return fmt.Errorf("upsert party balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return entity.LedgerEntry{}, apperror.Wrap(err)
	}

	logger.Info(ctx, "ledger entry appended",
		"party_id", entry.PartyID,
		"transaction_type", entry.TransactionType,
		"debit", entry.Debit,
		"credit", entry.Credit,
		"balance_after", entry.BalanceAfter,
	)
	return entry, nil
}

// currentBalance prefers the stored party balance and falls back to the signed opening balance.
func (s *Service) currentBalance(ctx context.Context, p entity.Party) (decimal.Decimal, error) {
	rows, err := s.repo.ListPartyBalances(ctx, p.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list party balances: %w", err)
	}
	if len(rows) > 0 {
		return rows[0].Balance, nil
	}
	entries, err := s.repo.ListEntries(ctx, p.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list ledger entries: %w", err)
	}
	final, _ := Replay(p.SignedOpeningBalance(), entries)
	return final, nil
}

// Statement is a party's balance and entries.
type Statement struct {
	Party   entity.Party         `json:"party"`
	Balance decimal.Decimal      `json:"balance"`
	Entries []entity.LedgerEntry `json:"entries"`
}

// Statement returns the party's entries with the balance derived from them.
func (s *Service) Statement(ctx context.Context, partyID string) (Statement, error) {
	var st Statement
	err := s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetParty(ctx, partyID)
		if err != nil {
			return err
		}
		entries, err := s.repo.ListEntries(ctx, partyID)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("list ledger entries: %w", err))
		}
		if entries == nil {
			entries = []entity.LedgerEntry{}
		}
		final, _ := Replay(p.SignedOpeningBalance(), entries)
		st = Statement{Party: p, Balance: final, Entries: entries}
		return nil
	})
	if err != nil {
		return Statement{}, err
	}
	return st, nil
}
