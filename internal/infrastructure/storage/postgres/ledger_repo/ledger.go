// Package ledger_repo stores parties, their ledger entries and running balances.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/id"
	"factoryledger/internal/domain/ledger"
	"factoryledger/internal/infrastructure/storage/postgres"
)

var partyColumns = []string{"id::text AS id", "name", "type", "opening_balance", "balance_type"}

var entryColumns = []string{
	"id::text AS id", "party_id::text AS party_id", "transaction_type", "reference_id", "date",
	"description", "debit", "credit", "balance_after", "created_at",
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListParties returns every party ordered by name.
func (r *LedgerRepo) ListParties(ctx context.Context) ([]entity.Party, error) {
	sql, args, err := r.builder.Select(partyColumns...).From("parties").OrderBy("name", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]entity.Party, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	return out, nil
}

// GetParty loads one party. Malformed ids are reported as not found.
func (r *LedgerRepo) GetParty(ctx context.Context, partyID string) (entity.Party, error) {
	if !id.IsUUID(partyID) {
		return entity.Party{}, apperror.NewNotFound("party", partyID)
	}

	sql, args, err := r.builder.Select(partyColumns...).From("parties").
		Where(squirrel.Eq{"id": partyID}).ToSql()
	if err != nil {
		return entity.Party{}, fmt.Errorf("build query: %w", err)
	}

	var p entity.Party
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return p, apperror.NewNotFound("party", partyID)
		}
		return p, fmt.Errorf("get party: %w", err)
	}
	return p, nil
}

func (r *LedgerRepo) entriesQuery(partyID string) squirrel.SelectBuilder {
	return r.builder.Select(entryColumns...).
		From("ledger").
		Where(squirrel.Eq{"party_id": partyID}).
		OrderBy("date", "created_at", "id")
}

// ListEntries returns a party's entries in posting order.
func (r *LedgerRepo) ListEntries(ctx context.Context, partyID string) ([]entity.LedgerEntry, error) {
	sql, args, err := r.entriesQuery(partyID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]entity.LedgerEntry, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return out, nil
}

// InsertEntry appends a ledger entry.
func (r *LedgerRepo) InsertEntry(ctx context.Context, e entity.LedgerEntry) error {
	sql, args, err := r.builder.Insert("ledger").
		Columns("id", "party_id", "transaction_type", "reference_id", "date",
			"description", "debit", "credit", "balance_after", "created_at").
		Values(e.ID, e.PartyID, e.TransactionType, e.ReferenceID, e.Date,
			e.Description, e.Debit, e.Credit, e.BalanceAfter, e.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepo) entryBalanceBatch(updates []ledger.EntryBalance) (*postgres.Batch, error) {
	b := &postgres.Batch{}
	for _, u := range updates {
		q := r.builder.Update("ledger").
			Set("balance_after", u.BalanceAfter).
			Where(squirrel.Eq{"id": u.EntryID})
		if err := b.Queue(q); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// UpdateEntryBalances rewrites balance_after for the given entries in one round trip.
func (r *LedgerRepo) UpdateEntryBalances(ctx context.Context, updates []ledger.EntryBalance) error {
	b, err := r.entryBalanceBatch(updates)
	if err != nil {
		return err
	}
	return r.txManager.ExecBatch(ctx, b)
}

// ListPartyBalances returns every balance row of a party, oldest first.
func (r *LedgerRepo) ListPartyBalances(ctx context.Context, partyID string) ([]entity.PartyBalance, error) {
	sql, args, err := r.builder.Select("id::text AS id", "party_id::text AS party_id", "balance", "last_updated").
		From("party_balances").
		Where(squirrel.Eq{"party_id": partyID}).
		OrderBy("last_updated", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]entity.PartyBalance, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list party balances: %w", err)
	}
	return out, nil
}

// DeletePartyBalances removes balance rows by id.
func (r *LedgerRepo) DeletePartyBalances(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	sql, args, err := r.builder.Delete("party_balances").Where(squirrel.Eq{"id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete party balances: %w", err)
	}
	return nil
}

// UpsertPartyBalance updates the party's balance row, inserting one when none exists.
func (r *LedgerRepo) UpsertPartyBalance(ctx context.Context, partyID string, balance decimal.Decimal, at time.Time) error {
	q := r.txManager.GetQuerier(ctx)

	sql, args, err := r.builder.Update("party_balances").
		Set("balance", balance).
		Set("last_updated", at).
		Where(squirrel.Eq{"party_id": partyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update party balance: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	sql, args, err = r.builder.Insert("party_balances").
		Columns("id", "party_id", "balance", "last_updated").
		Values(id.NewString(), partyID, balance, at).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert party balance: %w", err)
	}
	return nil
}

// LockParty takes a transaction-scoped advisory lock on the party.
func (r *LedgerRepo) LockParty(ctx context.Context, partyID string) error {
	if r.txManager.GetTx(ctx) == nil {
		return fmt.Errorf("lock party requires transaction context")
	}
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", "party:"+partyID)
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}
