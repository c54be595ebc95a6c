package finance_repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/core/apperror"
)

func TestFinanceRepo_ByReferenceQuery(t *testing.T) {
	r := NewFinanceRepo(nil)

	sql, args, err := r.byReferenceQuery("17", "invoice_cancellation").ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM financial_transactions WHERE reference_id = $1 AND reference_type = $2")
	assert.Contains(t, sql, "ORDER BY created_at, id")
	assert.Equal(t, []any{"17", "invoice_cancellation"}, args)
}

func TestFinanceRepo_LocksRequireTransaction(t *testing.T) {
	r := NewFinanceRepo(nil)
	ctx := context.Background()

	assert.Error(t, r.LockReference(ctx, "17", "invoice"))

	_, err := r.GetBalanceForUpdate(ctx)
	assert.Error(t, err)
}

func TestMapCheckViolation(t *testing.T) {
	check := fmt.Errorf("save financial balance: %w", &pgconn.PgError{Code: "23514"})
	err := mapCheckViolation(check)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientBalance))

	other := errors.New("connection reset")
	assert.Same(t, other, mapCheckViolation(other))
}
