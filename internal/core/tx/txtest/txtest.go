// Package txtest provides a tx.Manager for unit tests of domain services.
package txtest

import (
	"context"

	"factoryledger/internal/core/tx"
)

// Manager runs callbacks directly. Savepoint rollbacks are modelled by the
// Rollbacks counter only; fakes are expected to keep their own state consistent.
type Manager struct {
	Transactions int
	Savepoints   int
	ReadOnlys    int
	Rollbacks    int
}

var _ tx.Manager = (*Manager)(nil)

func (m *Manager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Transactions++
	err := fn(ctx)
	if err != nil {
		m.Rollbacks++
	}
	return err
}

func (m *Manager) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Savepoints++
	err := fn(ctx)
	if err != nil {
		m.Rollbacks++
	}
	return err
}

func (m *Manager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	m.ReadOnlys++
	return fn(ctx)
}
