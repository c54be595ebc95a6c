package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/bridge"
	"factoryledger/internal/domain/finance"
)

// SetBalanceRequest overwrites both balances.
type SetBalanceRequest struct {
	CashBalance decimal.Decimal `json:"cashBalance"`
	BankBalance decimal.Decimal `json:"bankBalance"`
}

// CashRequest is a deposit or withdrawal.
type CashRequest struct {
	Account entity.Account  `json:"account" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Notes   string          `json:"notes"`
}

// ToInput converts to the domain input.
func (r CashRequest) ToInput() finance.CashInput {
	return finance.CashInput{Account: r.Account, Amount: r.Amount, Notes: r.Notes}
}

// TransferRequest moves money between cash and bank.
type TransferRequest struct {
	From   entity.Account  `json:"from" binding:"required"`
	To     entity.Account  `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes"`
}

// ToInput converts to the domain input.
func (r TransferRequest) ToInput() finance.TransferInput {
	return finance.TransferInput{From: r.From, To: r.To, Amount: r.Amount, Notes: r.Notes}
}

// ConfirmPaymentRequest books a confirmed payment.
type ConfirmPaymentRequest struct {
	ID            string               `json:"id" binding:"required"`
	PaymentType   entity.PaymentType   `json:"paymentType" binding:"required"`
	PartyID       *string              `json:"partyId"`
	PartyName     string               `json:"partyName"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod entity.PaymentMethod `json:"paymentMethod"`
	Date          *time.Time           `json:"date"`
}

// ToEntity converts to the payment record.
func (r ConfirmPaymentRequest) ToEntity(now time.Time) entity.Payment {
	method := r.PaymentMethod
	if method == "" {
		method = entity.PaymentCash
	}
	date := now
	if r.Date != nil {
		date = *r.Date
	}
	return entity.Payment{
		ID:            r.ID,
		PaymentType:   r.PaymentType,
		PartyID:       r.PartyID,
		PartyName:     r.PartyName,
		Amount:        r.Amount,
		PaymentMethod: method,
		Date:          date,
	}
}

// CancelCommercialRequest reverses a confirmed invoice or payment.
type CancelCommercialRequest struct {
	ReferenceID    string               `json:"referenceId" binding:"required"`
	ReferenceType  string               `json:"referenceType" binding:"required"`
	CommercialType string               `json:"commercialType" binding:"required"`
	Amount         decimal.Decimal      `json:"amount"`
	PaidAmount     decimal.Decimal      `json:"paidAmount"`
	PaymentMethod  entity.PaymentMethod `json:"paymentMethod"`
	PartyID        *string              `json:"partyId"`
	PartyName      string               `json:"partyName"`
	Date           *time.Time           `json:"date"`
}

// ToInput converts to the bridge input.
func (r CancelCommercialRequest) ToInput(now time.Time) bridge.CancellationInput {
	method := r.PaymentMethod
	if method == "" {
		method = entity.PaymentCash
	}
	date := now
	if r.Date != nil {
		date = *r.Date
	}
	return bridge.CancellationInput{
		ReferenceID:    r.ReferenceID,
		ReferenceType:  r.ReferenceType,
		CommercialType: r.CommercialType,
		Amount:         r.Amount,
		PaidAmount:     r.PaidAmount,
		PaymentMethod:  method,
		PartyID:        r.PartyID,
		PartyName:      r.PartyName,
		Date:           date,
	}
}
