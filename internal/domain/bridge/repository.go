// Package bridge mirrors commercial documents (invoices, payments, returns) into
// financial transactions, cash balances and party ledgers.
package bridge

import (
	"context"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/finance"
	"factoryledger/internal/domain/ledger"
)

// Transactions persists financial transactions.
type Transactions interface {
	// ListByReference returns transactions linked to (referenceID, referenceType).
	ListByReference(ctx context.Context, referenceID, referenceType string) ([]entity.FinancialTransaction, error)
	InsertTransaction(ctx context.Context, t entity.FinancialTransaction) error
	// LockReference serializes writers of one reference until the transaction ends.
	LockReference(ctx context.Context, referenceID, referenceType string) error
}

// Profits reads and writes recognized invoice profit.
type Profits interface {
	// GetProfit returns an apperror not-found when the invoice has no profit row.
	GetProfit(ctx context.Context, invoiceID string) (entity.InvoiceProfit, error)
	SaveProfit(ctx context.Context, p entity.InvoiceProfit) error
}

// Documents loads commercial documents for event-driven handling.
type Documents interface {
	GetInvoice(ctx context.Context, id string) (entity.Invoice, error)
	GetReturn(ctx context.Context, id string) (entity.Return, error)
}

// Balances is the part of finance.Service the bridge uses.
type Balances interface {
	UpdateBalanceByPaymentMethod(ctx context.Context, amount decimal.Decimal, method entity.PaymentMethod, isIncome bool, reason string) (entity.FinancialBalance, error)
}

// Ledger is the part of ledger.Service the bridge uses.
type Ledger interface {
	Append(ctx context.Context, in ledger.AppendInput) (entity.LedgerEntry, error)
}

var (
	_ Balances = (*finance.Service)(nil)
	_ Ledger   = (*ledger.Service)(nil)
)
