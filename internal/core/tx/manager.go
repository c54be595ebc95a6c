// Package tx provides transaction management abstractions.
// Domain services depend on Manager; the pgx implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// Nested calls reuse the transaction already present in ctx.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInSavepoint executes fn inside a savepoint of the transaction in ctx,
	// so a failing fn is rolled back alone and the outer transaction stays usable.
	// Outside a transaction it behaves like RunInTransaction.
	RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error

	// ReadOnly executes fn in a read-only transaction so multi-query reads see
	// one consistent view of committed writes.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
