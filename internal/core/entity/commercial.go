package entity

import (
	"time"

	"factoryledger/internal/core/types"
)

// InvoiceType distinguishes sales from purchases.
type InvoiceType string

const (
	InvoiceSale     InvoiceType = "sale"
	InvoicePurchase InvoiceType = "purchase"
)

// InvoiceStatus is the lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceConfirmed InvoiceStatus = "confirmed"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	return s == InvoiceDraft || s == InvoiceConfirmed || s == InvoiceCancelled
}

// CommercialLine is one item row of an invoice or a return.
type CommercialLine struct {
	ItemType  ItemType       `db:"item_type" json:"itemType"`
	ItemID    string         `db:"item_id" json:"itemId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice types.Money    `db:"unit_price" json:"unitPrice"`
}

// Total is quantity times unit price. It is never stored.
func (l CommercialLine) Total() types.Money {
	return l.Quantity.Mul(l.UnitPrice)
}

// Invoice is a confirmed-or-not sale or purchase document.
type Invoice struct {
	ID            string           `db:"id" json:"id"`
	InvoiceType   InvoiceType      `db:"invoice_type" json:"invoiceType"`
	PartyID       *string          `db:"party_id" json:"partyId,omitempty"`
	PartyName     string           `db:"party_name" json:"partyName"`
	Date          time.Time        `db:"date" json:"date"`
	Status        InvoiceStatus    `db:"status" json:"status"`
	TotalAmount   types.Money      `db:"total_amount" json:"totalAmount"`
	PaidAmount    types.Money      `db:"paid_amount" json:"paidAmount"`
	PaymentMethod PaymentMethod    `db:"payment_method" json:"paymentMethod"`
	Items         []CommercialLine `json:"items"`
}

// ReturnType distinguishes goods coming back from a customer and goods sent back to a supplier.
type ReturnType string

const (
	SalesReturn    ReturnType = "sales_return"
	PurchaseReturn ReturnType = "purchase_return"
)

// ReturnStatus is the lifecycle of a return.
type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "pending"
	ReturnConfirmed ReturnStatus = "confirmed"
	ReturnCancelled ReturnStatus = "cancelled"
)

// Valid reports whether s is a known return status.
func (s ReturnStatus) Valid() bool {
	return s == ReturnPending || s == ReturnConfirmed || s == ReturnCancelled
}

// Return reverses part of an invoice.
type Return struct {
	ID            string           `db:"id" json:"id"`
	ReturnType    ReturnType       `db:"return_type" json:"returnType"`
	InvoiceID     *string          `db:"invoice_id" json:"invoiceId,omitempty"`
	PartyID       *string          `db:"party_id" json:"partyId,omitempty"`
	PartyName     string           `db:"party_name" json:"partyName"`
	Date          time.Time        `db:"date" json:"date"`
	Status        ReturnStatus     `db:"status" json:"status"`
	TotalAmount   types.Money      `db:"total_amount" json:"totalAmount"`
	PaymentMethod PaymentMethod    `db:"payment_method" json:"paymentMethod"`
	Items         []CommercialLine `json:"items"`
}

// PaymentType is the direction of a settlement.
type PaymentType string

const (
	PaymentCollection   PaymentType = "collection"
	PaymentDisbursement PaymentType = "disbursement"
)

// Payment settles part of a party balance.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	PaymentType   PaymentType   `db:"payment_type" json:"paymentType"`
	PartyID       *string       `db:"party_id" json:"partyId,omitempty"`
	PartyName     string        `db:"party_name" json:"partyName"`
	Amount        types.Money   `db:"amount" json:"amount"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"paymentMethod"`
	Date          time.Time     `db:"date" json:"date"`
}

// InvoiceProfit is the recognized profit of a sale invoice.
type InvoiceProfit struct {
	InvoiceID    string      `db:"invoice_id" json:"invoiceId"`
	TotalSales   types.Money `db:"total_sales" json:"totalSales"`
	TotalCost    types.Money `db:"total_cost" json:"totalCost"`
	ProfitAmount types.Money `db:"profit_amount" json:"profitAmount"`
}

// ApplyReturn reduces sales and profit proportionally to a returned amount.
// Sales never drop below zero.
func (p InvoiceProfit) ApplyReturn(amount types.Money) InvoiceProfit {
	if p.TotalSales.IsZero() || amount.IsZero() {
		return p
	}
	if amount.GreaterThan(p.TotalSales) {
		amount = p.TotalSales
	}
	ratio := amount.Div(p.TotalSales)
	out := p
	out.ProfitAmount = p.ProfitAmount.Sub(p.ProfitAmount.Mul(ratio))
	out.TotalCost = p.TotalCost.Sub(p.TotalCost.Mul(ratio))
	out.TotalSales = p.TotalSales.Sub(amount)
	return out
}

// RevertReturn undoes ApplyReturn for the same amount by scaling profit and
// cost back up. After a full return the margin is gone, so only sales come back.
func (p InvoiceProfit) RevertReturn(amount types.Money) InvoiceProfit {
	if amount.IsZero() {
		return p
	}
	out := p
	out.TotalSales = p.TotalSales.Add(amount)
	if p.TotalSales.IsZero() {
		return out
	}
	ratio := out.TotalSales.Div(p.TotalSales)
	out.ProfitAmount = p.ProfitAmount.Mul(ratio)
	out.TotalCost = p.TotalCost.Mul(ratio)
	return out
}
