// Package finance maintains the cash and bank balances and the cash operations that move them.
package finance

import (
	"context"

	"factoryledger/internal/core/entity"
)

// Repository persists the balance singleton and money movements.
type Repository interface {
	// GetBalance returns the singleton row; a missing row is an apperror not-found.
	GetBalance(ctx context.Context) (entity.FinancialBalance, error)

	// GetBalanceForUpdate locks the singleton row, creating a zero row first if none exists.
	GetBalanceForUpdate(ctx context.Context) (entity.FinancialBalance, error)

	SaveBalance(ctx context.Context, b entity.FinancialBalance) error

	InsertTransaction(ctx context.Context, t entity.FinancialTransaction) error
	InsertCashOperation(ctx context.Context, op entity.CashOperation) error
}

// Publisher announces balance changes.
type Publisher interface {
	PublishFinancialChange(ctx context.Context, reason string)
}
