package document_repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/domain/status"
)

func TestDocumentRepo_StatusQuery(t *testing.T) {
	r := NewDocumentRepo(nil)

	sql, args, err := r.statusQuery("invoices", 42, "confirmed")
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE invoices AS d SET status = $1")
	assert.Contains(t, sql, "FROM (SELECT id, status FROM invoices WHERE id = $2 FOR UPDATE) AS old")
	assert.Contains(t, sql, "WHERE d.id = old.id RETURNING old.status")
	assert.Equal(t, []any{"confirmed", int64(42)}, args)
}

func TestDocumentRepo_StatusTablesCoverEveryKind(t *testing.T) {
	for _, k := range []status.Kind{
		status.KindProductionOrder,
		status.KindPackagingOrder,
		status.KindInvoice,
		status.KindReturn,
	} {
		_, ok := statusTables[k]
		assert.True(t, ok, "kind %s has no table", k)
	}
}

func TestDocumentRepo_UpdateStatusRejectsBadInput(t *testing.T) {
	r := NewDocumentRepo(nil)
	ctx := context.Background()

	_, err := r.UpdateStatus(ctx, status.Kind("shipment"), "1", "done")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = r.UpdateStatus(ctx, status.KindInvoice, "not-a-number", "confirmed")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDocumentRepo_MalformedKeysAreNotFound(t *testing.T) {
	r := NewDocumentRepo(nil)
	ctx := context.Background()

	_, err := r.GetInvoice(ctx, "abc")
	assert.True(t, apperror.IsNotFound(err))

	_, err = r.GetReturn(ctx, "-3")
	assert.True(t, apperror.IsNotFound(err))

	_, err = r.GetProductionOrder(ctx, "")
	assert.True(t, apperror.IsNotFound(err))

	_, err = r.GetProfit(ctx, "0")
	assert.True(t, apperror.IsNotFound(err))
}
