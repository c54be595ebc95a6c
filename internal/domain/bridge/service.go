package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/id"
	"factoryledger/internal/core/tx"
	"factoryledger/internal/domain/ledger"
	"factoryledger/pkg/logger"
)

// Reference types on financial transactions.
const (
	RefInvoice = "invoice"
	RefPayment = "payment"
	RefReturn  = "return"

	cancellationSuffix = "_cancellation"
)

// Outcome reports what a bridge call did.
type Outcome struct {
	ReferenceID   string `json:"referenceId"`
	ReferenceType string `json:"referenceType"`
	// AlreadyLinked is true when a transaction for the reference existed and nothing was written.
	AlreadyLinked bool                          `json:"alreadyLinked"`
	Transactions  []entity.FinancialTransaction `json:"transactions"`
	LedgerEntry   *entity.LedgerEntry           `json:"ledgerEntry,omitempty"`
	Profit        *entity.InvoiceProfit         `json:"profit,omitempty"`
}

// Service is the financial-commercial bridge. Every handler runs in one
// transaction and checks for an existing transaction with the same
// (reference_id, reference_type) before writing.
type Service struct {
	txManager    tx.Manager
	transactions Transactions
	profits      Profits
	balances     Balances
	ledger       Ledger
	now          func() time.Time
}

// NewService creates a bridge.
func NewService(txManager tx.Manager, transactions Transactions, profits Profits, balances Balances, parties Ledger) *Service {
	return &Service{
		txManager:    txManager,
		transactions: transactions,
		profits:      profits,
		balances:     balances,
		ledger:       parties,
		now:          time.Now,
	}
}

// guarded runs fn once per reference. fn is skipped when a transaction for the reference already exists.
func (s *Service) guarded(ctx context.Context, refID, refType string, fn func(ctx context.Context, out *Outcome) error) (Outcome, error) {
	out := Outcome{ReferenceID: refID, ReferenceType: refType, Transactions: []entity.FinancialTransaction{}}
	if refID == "" {
		return out, apperror.NewValidation("reference id is required")
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.transactions.LockReference(ctx, refID, refType); err != nil {
			return fmt.Errorf("lock reference: %w", err)
		}
		existing, err := s.transactions.ListByReference(ctx, refID, refType)
		if err != nil {
			return fmt.Errorf("check existing transactions: %w", err)
		}
		if len(existing) > 0 {
			out.AlreadyLinked = true
			return nil
		}
		return fn(ctx, &out)
	})
	if err != nil {
		logger.Error(ctx, "financial bridge failed",
			"reference_id", refID, "reference_type", refType, "error", err)
		return Outcome{}, apperror.Wrap(err)
	}

	if out.AlreadyLinked {
		logger.Info(ctx, "financial transaction already linked, skipped",
			"reference_id", refID, "reference_type", refType)
	}
	return out, nil
}

func (s *Service) insert(ctx context.Context, out *Outcome, t entity.FinancialTransaction) error {
	t.ID = id.NewString()
	t.CreatedAt = s.now().UTC()
	if t.Date.IsZero() {
		t.Date = t.CreatedAt
	}
	if err := s.transactions.InsertTransaction(ctx, t); err != nil {
		return fmt.Errorf("insert financial transaction: %w", err)
	}
	out.Transactions = append(out.Transactions, t)
	return nil
}

func (s *Service) moveCash(ctx context.Context, amount decimal.Decimal, method entity.PaymentMethod, isIncome bool, reason string) error {
	if !amount.IsPositive() {
		return nil
	}
	_, err := s.balances.UpdateBalanceByPaymentMethod(ctx, amount, method, isIncome, reason)
	return err
}

func (s *Service) appendLedger(ctx context.Context, out *Outcome, partyID *string, in ledger.AppendInput) error {
	if partyID == nil || *partyID == "" {
		return nil
	}
	if in.Debit.IsZero() && in.Credit.IsZero() {
		return nil
	}
	in.PartyID = *partyID
	entry, err := s.ledger.Append(ctx, in)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	out.LedgerEntry = &entry
	return nil
}

// HandleInvoiceConfirmation books a confirmed invoice. A sale is income and a
// purchase is expense for the full amount; only the paid part moves cash. The
// party is debited what it owes and credited what it paid.
func (s *Service) HandleInvoiceConfirmation(ctx context.Context, inv entity.Invoice) (Outcome, error) {
	if !inv.TotalAmount.IsPositive() {
		return Outcome{}, apperror.NewValidation("invoice total must be greater than zero")
	}
	isSale := inv.InvoiceType == entity.InvoiceSale
	txType := entity.TransactionIncome
	if !isSale {
		txType = entity.TransactionExpense
	}

	return s.guarded(ctx, inv.ID, RefInvoice, func(ctx context.Context, out *Outcome) error {
		if err := s.insert(ctx, out, entity.FinancialTransaction{
			Type:          txType,
			Amount:        inv.TotalAmount,
			Date:          inv.Date,
			PaymentMethod: inv.PaymentMethod,
			ReferenceID:   inv.ID,
			ReferenceType: RefInvoice,
			Notes:         fmt.Sprintf("%s invoice %s", inv.InvoiceType, inv.ID),
		}); err != nil {
			return err
		}
		if err := s.moveCash(ctx, inv.PaidAmount, inv.PaymentMethod, isSale, "invoice "+inv.ID); err != nil {
			return err
		}

		entry := ledger.AppendInput{
			TransactionType: string(inv.InvoiceType),
			ReferenceID:     inv.ID,
			Date:            inv.Date,
			Description:     fmt.Sprintf("%s invoice %s", inv.InvoiceType, inv.ID),
		}
		if isSale {
			entry.Debit, entry.Credit = inv.TotalAmount, inv.PaidAmount
		} else {
			entry.Debit, entry.Credit = inv.PaidAmount, inv.TotalAmount
		}
		return s.appendLedger(ctx, out, inv.PartyID, entry)
	})
}

// HandlePaymentConfirmation books a payment: collections are income credited to
// the party, disbursements are expense debited to it.
func (s *Service) HandlePaymentConfirmation(ctx context.Context, p entity.Payment) (Outcome, error) {
	if !p.Amount.IsPositive() {
		return Outcome{}, apperror.NewValidation("payment amount must be greater than zero")
	}
	isCollection := p.PaymentType == entity.PaymentCollection
	txType := entity.TransactionIncome
	if !isCollection {
		txType = entity.TransactionExpense
	}

	return s.guarded(ctx, p.ID, RefPayment, func(ctx context.Context, out *Outcome) error {
		if err := s.insert(ctx, out, entity.FinancialTransaction{
			Type:          txType,
			Amount:        p.Amount,
			Date:          p.Date,
			PaymentMethod: p.PaymentMethod,
			ReferenceID:   p.ID,
			ReferenceType: RefPayment,
			Notes:         fmt.Sprintf("%s %s", p.PaymentType, p.ID),
		}); err != nil {
			return err
		}
		if err := s.moveCash(ctx, p.Amount, p.PaymentMethod, isCollection, "payment "+p.ID); err != nil {
			return err
		}

		entry := ledger.AppendInput{
			TransactionType: string(p.PaymentType),
			ReferenceID:     p.ID,
			Date:            p.Date,
			Description:     fmt.Sprintf("%s %s", p.PaymentType, p.ID),
		}
		if isCollection {
			entry.Credit = p.Amount
		} else {
			entry.Debit = p.Amount
		}
		return s.appendLedger(ctx, out, p.PartyID, entry)
	})
}

// HandleReturnConfirmation books a return as a reduction of the original class
// of transaction: a sales return reduces income, a purchase return reduces
// expense. Sales returns against an invoice also shrink its recognized profit.
func (s *Service) HandleReturnConfirmation(ctx context.Context, r entity.Return) (Outcome, error) {
	if !r.TotalAmount.IsPositive() {
		return Outcome{}, apperror.NewValidation("return total must be greater than zero")
	}
	isSales := r.ReturnType == entity.SalesReturn
	txType := entity.TransactionIncome
	if !isSales {
		txType = entity.TransactionExpense
	}

	return s.guarded(ctx, r.ID, RefReturn, func(ctx context.Context, out *Outcome) error {
		if err := s.insert(ctx, out, entity.FinancialTransaction{
			Type:          txType,
			Amount:        r.TotalAmount,
			Date:          r.Date,
			PaymentMethod: r.PaymentMethod,
			ReferenceID:   r.ID,
			ReferenceType: RefReturn,
			IsReduction:   true,
			Notes:         fmt.Sprintf("%s %s", r.ReturnType, r.ID),
		}); err != nil {
			return err
		}

		entry := ledger.AppendInput{
			TransactionType: string(r.ReturnType),
			ReferenceID:     r.ID,
			Date:            r.Date,
			Description:     fmt.Sprintf("%s %s", r.ReturnType, r.ID),
		}
		if isSales {
			entry.Credit = r.TotalAmount
		} else {
			entry.Debit = r.TotalAmount
		}
		if err := s.appendLedger(ctx, out, r.PartyID, entry); err != nil {
			return err
		}

		if isSales && r.InvoiceID != nil {
			return s.adjustProfit(ctx, out, *r.InvoiceID, func(p entity.InvoiceProfit) entity.InvoiceProfit {
				return p.ApplyReturn(r.TotalAmount)
			})
		}
		return nil
	})
}

func (s *Service) adjustProfit(ctx context.Context, out *Outcome, invoiceID string, fn func(entity.InvoiceProfit) entity.InvoiceProfit) error {
	p, err := s.profits.GetProfit(ctx, invoiceID)
	if err != nil {
		if apperror.IsNotFound(err) {
			logger.Warn(ctx, "no profit record for returned invoice", "invoice_id", invoiceID)
			return nil
		}
		return fmt.Errorf("get invoice profit: %w", err)
	}
	next := fn(p)
	if err := s.profits.SaveProfit(ctx, next); err != nil {
		return fmt.Errorf("save invoice profit: %w", err)
	}
	out.Profit = &next
	return nil
}

// CancellationInput describes a commercial document being cancelled.
type CancellationInput struct {
	ReferenceID string
	// ReferenceType is the type the original was booked under: invoice or payment.
	ReferenceType string
	// CommercialType is sale, purchase, collection or disbursement.
	CommercialType string
	Amount         decimal.Decimal
	// PaidAmount is the cash part to give back; for payments it equals Amount.
	PaidAmount    decimal.Decimal
	PaymentMethod entity.PaymentMethod
	PartyID       *string
	PartyName     string
	Date          time.Time
}

func incomeSide(commercialType string) (bool, error) {
	switch commercialType {
	case string(entity.InvoiceSale), string(entity.PaymentCollection):
		return true, nil
	case string(entity.InvoicePurchase), string(entity.PaymentDisbursement):
		return false, nil
	}
	return false, apperror.NewValidation(fmt.Sprintf("unknown commercial type %q", commercialType))
}

// HandleCommercialCancellation reverses a booked invoice or payment. The
// reversal has the same type as the original with is_reduction set, and is
// recorded once under "<type>_cancellation".
func (s *Service) HandleCommercialCancellation(ctx context.Context, in CancellationInput) (Outcome, error) {
	if in.ReferenceType != RefInvoice && in.ReferenceType != RefPayment {
		return Outcome{}, apperror.NewValidation("reference type must be invoice or payment")
	}
	income, err := incomeSide(in.CommercialType)
	if err != nil {
		return Outcome{}, err
	}
	if in.PaidAmount.IsZero() && in.ReferenceType == RefPayment {
		in.PaidAmount = in.Amount
	}

	return s.guarded(ctx, in.ReferenceID, in.ReferenceType+cancellationSuffix, func(ctx context.Context, out *Outcome) error {
		originals, err := s.transactions.ListByReference(ctx, in.ReferenceID, in.ReferenceType)
		if err != nil {
			return fmt.Errorf("load original transactions: %w", err)
		}
		if len(originals) == 0 {
			logger.Info(ctx, "nothing booked for cancelled document",
				"reference_id", in.ReferenceID, "reference_type", in.ReferenceType)
			return nil
		}

		amount := in.Amount
		for _, o := range originals {
			if amount.IsZero() {
				amount = o.Amount
			}
			if err := s.insert(ctx, out, reversalOf(o, amount, in.ReferenceType+cancellationSuffix, in.Date)); err != nil {
				return err
			}
		}

		if err := s.moveCash(ctx, in.PaidAmount, in.PaymentMethod, !income, in.ReferenceType+" cancellation "+in.ReferenceID); err != nil {
			return err
		}

		entry := ledger.AppendInput{
			TransactionType: in.CommercialType + cancellationSuffix,
			ReferenceID:     in.ReferenceID,
			Date:            in.Date,
			Description:     fmt.Sprintf("cancellation of %s %s", in.ReferenceType, in.ReferenceID),
		}
		switch {
		case in.ReferenceType == RefInvoice && income:
			entry.Debit, entry.Credit = in.PaidAmount, amount
		case in.ReferenceType == RefInvoice:
			entry.Debit, entry.Credit = amount, in.PaidAmount
		case income:
			entry.Debit = amount
		default:
			entry.Credit = amount
		}
		return s.appendLedger(ctx, out, in.PartyID, entry)
	})
}

// HandleReturnCancellation undoes a confirmed return: the reduction is reversed
// by a plain entry of the same type, the party entry is mirrored and the
// profit adjustment is reverted.
func (s *Service) HandleReturnCancellation(ctx context.Context, r entity.Return) (Outcome, error) {
	isSales := r.ReturnType == entity.SalesReturn

	return s.guarded(ctx, r.ID, RefReturn+cancellationSuffix, func(ctx context.Context, out *Outcome) error {
		originals, err := s.transactions.ListByReference(ctx, r.ID, RefReturn)
		if err != nil {
			return fmt.Errorf("load original transactions: %w", err)
		}
		if len(originals) == 0 {
			logger.Info(ctx, "nothing booked for cancelled return", "reference_id", r.ID)
			return nil
		}

		amount := r.TotalAmount
		for _, o := range originals {
			if amount.IsZero() {
				amount = o.Amount
			}
			if err := s.insert(ctx, out, reversalOf(o, amount, RefReturn+cancellationSuffix, r.Date)); err != nil {
				return err
			}
		}

		entry := ledger.AppendInput{
			TransactionType: string(r.ReturnType) + cancellationSuffix,
			ReferenceID:     r.ID,
			Date:            r.Date,
			Description:     fmt.Sprintf("cancellation of %s %s", r.ReturnType, r.ID),
		}
		if isSales {
			entry.Debit = amount
		} else {
			entry.Credit = amount
		}
		if err := s.appendLedger(ctx, out, r.PartyID, entry); err != nil {
			return err
		}

		if isSales && r.InvoiceID != nil {
			return s.adjustProfit(ctx, out, *r.InvoiceID, func(p entity.InvoiceProfit) entity.InvoiceProfit {
				return p.RevertReturn(amount)
			})
		}
		return nil
	})
}

// reversalOf keeps the original's type and flips its reduction flag.
func reversalOf(o entity.FinancialTransaction, amount decimal.Decimal, refType string, date time.Time) entity.FinancialTransaction {
	return entity.FinancialTransaction{
		Type:          o.Type,
		Amount:        amount,
		CategoryID:    o.CategoryID,
		Date:          date,
		PaymentMethod: o.PaymentMethod,
		ReferenceID:   o.ReferenceID,
		ReferenceType: refType,
		IsReduction:   !o.IsReduction,
		Notes:         "reversal of " + o.ReferenceType + " " + o.ReferenceID,
	}
}
