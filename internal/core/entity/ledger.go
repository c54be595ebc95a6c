package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/types"
)

// BalanceType is the side an opening balance sits on.
type BalanceType string

const (
	BalanceDebit  BalanceType = "debit"
	BalanceCredit BalanceType = "credit"
)

// Party is a customer or supplier.
type Party struct {
	ID             string      `db:"id" json:"id"`
	Name           string      `db:"name" json:"name"`
	Type           string      `db:"type" json:"type"`
	OpeningBalance types.Money `db:"opening_balance" json:"openingBalance"`
	BalanceType    BalanceType `db:"balance_type" json:"balanceType"`
}

// SignedOpeningBalance negates credit-side opening balances.
func (p Party) SignedOpeningBalance() decimal.Decimal {
	if p.BalanceType == BalanceCredit {
		return p.OpeningBalance.Neg()
	}
	return p.OpeningBalance
}

// PartyBalance is the derived running balance of a party. Positive means the party owes us.
type PartyBalance struct {
	ID          string      `db:"id" json:"id"`
	PartyID     string      `db:"party_id" json:"partyId"`
	Balance     types.Money `db:"balance" json:"balance"`
	LastUpdated time.Time   `db:"last_updated" json:"lastUpdated"`
}

// LedgerEntry is one debit/credit line of a party account.
type LedgerEntry struct {
	ID              string      `db:"id" json:"id"`
	PartyID         string      `db:"party_id" json:"partyId"`
	TransactionType string      `db:"transaction_type" json:"transactionType"`
	ReferenceID     *string     `db:"reference_id" json:"referenceId,omitempty"`
	Date            time.Time   `db:"date" json:"date"`
	Description     string      `db:"description" json:"description"`
	Debit           types.Money `db:"debit" json:"debit"`
	Credit          types.Money `db:"credit" json:"credit"`
	BalanceAfter    types.Money `db:"balance_after" json:"balanceAfter"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
}

// Net is debit minus credit.
func (e LedgerEntry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}
