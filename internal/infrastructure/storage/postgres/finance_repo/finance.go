// Package finance_repo stores the cash/bank balance singleton, financial
// transactions and cash operations.
package finance_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/bridge"
	"factoryledger/internal/domain/finance"
	"factoryledger/internal/infrastructure/storage/postgres"
)

// BalanceID is the key of the only financial_balance row.
const BalanceID = "1"

var balanceColumns = []string{"id", "cash_balance", "bank_balance", "last_updated"}

var transactionColumns = []string{
	"id::text AS id", "type", "amount", "category_id::text AS category_id", "date", "payment_method",
	"reference_id", "reference_type", "is_reduction", "notes", "created_at",
}

var (
	_ finance.Repository  = (*FinanceRepo)(nil)
	_ bridge.Transactions = (*FinanceRepo)(nil)
)

// FinanceRepo implements finance.Repository and bridge.Transactions.
type FinanceRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewFinanceRepo creates a finance repository.
func NewFinanceRepo(txManager *postgres.TxManager) *FinanceRepo {
	return &FinanceRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *FinanceRepo) getBalance(ctx context.Context, forUpdate bool) (entity.FinancialBalance, error) {
	q := r.builder.Select(balanceColumns...).From("financial_balance").Where(squirrel.Eq{"id": BalanceID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return entity.FinancialBalance{}, fmt.Errorf("build query: %w", err)
	}

	var b entity.FinancialBalance
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return b, apperror.NewNotFound("financial balance", BalanceID)
		}
		return b, fmt.Errorf("get financial balance: %w", err)
	}
	return b, nil
}

// GetBalance returns the balance singleton.
func (r *FinanceRepo) GetBalance(ctx context.Context) (entity.FinancialBalance, error) {
	return r.getBalance(ctx, false)
}

// GetBalanceForUpdate creates the singleton when missing and locks it.
func (r *FinanceRepo) GetBalanceForUpdate(ctx context.Context) (entity.FinancialBalance, error) {
	if r.txManager.GetTx(ctx) == nil {
		return entity.FinancialBalance{}, fmt.Errorf("balance lock requires transaction context")
	}

	sql, args, err := r.builder.Insert("financial_balance").
		Columns("id", "cash_balance", "bank_balance").
		Values(BalanceID, 0, 0).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return entity.FinancialBalance{}, fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return entity.FinancialBalance{}, fmt.Errorf("ensure financial balance: %w", err)
	}

	return r.getBalance(ctx, true)
}

// SaveBalance writes both balances of the singleton.
func (r *FinanceRepo) SaveBalance(ctx context.Context, b entity.FinancialBalance) error {
	sql, args, err := r.builder.Update("financial_balance").
		Set("cash_balance", b.CashBalance).
		Set("bank_balance", b.BankBalance).
		Set("last_updated", b.LastUpdated).
		Where(squirrel.Eq{"id": BalanceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return mapCheckViolation(fmt.Errorf("save financial balance: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("financial balance", BalanceID)
	}
	return nil
}

// InsertTransaction appends a financial transaction.
func (r *FinanceRepo) InsertTransaction(ctx context.Context, t entity.FinancialTransaction) error {
	sql, args, err := r.builder.Insert("financial_transactions").
		Columns("id", "type", "amount", "category_id", "date", "payment_method",
			"reference_id", "reference_type", "is_reduction", "notes", "created_at").
		Values(t.ID, t.Type, t.Amount, t.CategoryID, t.Date, t.PaymentMethod,
			t.ReferenceID, t.ReferenceType, t.IsReduction, t.Notes, t.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert financial transaction: %w", err)
	}
	return nil
}

// InsertCashOperation appends a deposit, withdrawal or transfer.
func (r *FinanceRepo) InsertCashOperation(ctx context.Context, op entity.CashOperation) error {
	sql, args, err := r.builder.Insert("cash_operations").
		Columns("id", "operation_type", "amount", "from_account", "to_account", "notes", "date").
		Values(op.ID, op.OperationType, op.Amount, op.FromAccount, op.ToAccount, op.Notes, op.Date).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert cash operation: %w", err)
	}
	return nil
}

func (r *FinanceRepo) byReferenceQuery(referenceID, referenceType string) squirrel.SelectBuilder {
	return r.builder.Select(transactionColumns...).
		From("financial_transactions").
		Where(squirrel.Eq{"reference_id": referenceID, "reference_type": referenceType}).
		OrderBy("created_at", "id")
}

// ListByReference returns the transactions linked to a commercial document.
func (r *FinanceRepo) ListByReference(ctx context.Context, referenceID, referenceType string) ([]entity.FinancialTransaction, error) {
	sql, args, err := r.byReferenceQuery(referenceID, referenceType).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := make([]entity.FinancialTransaction, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list financial transactions: %w", err)
	}
	return out, nil
}

// LockReference takes a transaction-scoped advisory lock on the reference.
func (r *FinanceRepo) LockReference(ctx context.Context, referenceID, referenceType string) error {
	if r.txManager.GetTx(ctx) == nil {
		return fmt.Errorf("lock reference requires transaction context")
	}
	_, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", "finance:"+referenceType+":"+referenceID)
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// mapCheckViolation turns a negative-balance CHECK failure into a business rule error.
func mapCheckViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return apperror.NewBusinessRule(apperror.CodeInsufficientBalance, "Balance cannot go below zero").
			WithCause(err)
	}
	return err
}
