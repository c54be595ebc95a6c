package entity

import (
	"time"

	"factoryledger/internal/core/types"
)

// Account is one of the two tracked balances.
type Account string

const (
	AccountCash Account = "cash"
	AccountBank Account = "bank"
)

// Valid reports whether a is cash or bank.
func (a Account) Valid() bool {
	return a == AccountCash || a == AccountBank
}

// PaymentMethod is how money moved. It decides which account is touched.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCheck        PaymentMethod = "check"
	PaymentOther        PaymentMethod = "other"
)

// Account maps bank transfers and checks to the bank account and everything else to cash.
func (m PaymentMethod) Account() Account {
	switch m {
	case PaymentBankTransfer, PaymentCheck:
		return AccountBank
	}
	return AccountCash
}

// FinancialBalance is the singleton cash/bank row.
type FinancialBalance struct {
	ID          string      `db:"id" json:"id"`
	CashBalance types.Money `db:"cash_balance" json:"cashBalance"`
	BankBalance types.Money `db:"bank_balance" json:"bankBalance"`
	LastUpdated time.Time   `db:"last_updated" json:"lastUpdated"`
}

// Of returns the balance of one account.
func (b FinancialBalance) Of(a Account) types.Money {
	if a == AccountBank {
		return b.BankBalance
	}
	return b.CashBalance
}

// TransactionType classifies a financial transaction.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Opposite swaps income and expense.
func (t TransactionType) Opposite() TransactionType {
	if t == TransactionIncome {
		return TransactionExpense
	}
	return TransactionIncome
}

// FinancialTransaction mirrors a commercial document or cash operation in the books.
// IsReduction marks an adjustment of an earlier transaction of the same type.
type FinancialTransaction struct {
	ID            string          `db:"id" json:"id"`
	Type          TransactionType `db:"type" json:"type"`
	Amount        types.Money     `db:"amount" json:"amount"`
	CategoryID    *string         `db:"category_id" json:"categoryId,omitempty"`
	Date          time.Time       `db:"date" json:"date"`
	PaymentMethod PaymentMethod   `db:"payment_method" json:"paymentMethod"`
	ReferenceID   string          `db:"reference_id" json:"referenceId"`
	ReferenceType string          `db:"reference_type" json:"referenceType"`
	IsReduction   bool            `db:"is_reduction" json:"isReduction"`
	Notes         string          `db:"notes" json:"notes"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// SignedAmount is the effect on recognized income (positive) or expense (negative).
func (t FinancialTransaction) SignedAmount() types.Money {
	amount := t.Amount
	if t.IsReduction {
		amount = amount.Neg()
	}
	if t.Type == TransactionExpense {
		return amount.Neg()
	}
	return amount
}

// CashOperationType is a manual cash/bank movement.
type CashOperationType string

const (
	CashDeposit    CashOperationType = "deposit"
	CashWithdrawal CashOperationType = "withdrawal"
	CashTransfer   CashOperationType = "transfer"
)

// CashOperation records a deposit, withdrawal or transfer between accounts.
type CashOperation struct {
	ID            string            `db:"id" json:"id"`
	OperationType CashOperationType `db:"operation_type" json:"operationType"`
	Amount        types.Money       `db:"amount" json:"amount"`
	FromAccount   *Account          `db:"from_account" json:"fromAccount,omitempty"`
	ToAccount     *Account          `db:"to_account" json:"toAccount,omitempty"`
	Notes         string            `db:"notes" json:"notes"`
	Date          time.Time         `db:"date" json:"date"`
}
