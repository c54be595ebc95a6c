package finance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/notify"
	"factoryledger/pkg/logger"
)

// CashInput describes a deposit or withdrawal.
type CashInput struct {
	Account entity.Account
	Amount  decimal.Decimal
	Notes   string
}

// TransferInput moves money between the two accounts.
type TransferInput struct {
	From   entity.Account
	To     entity.Account
	Amount decimal.Decimal
	Notes  string
}

const refCashOperation = "cash_operation"

// Deposit adds money to an account and books it as income.
func (s *Service) Deposit(ctx context.Context, in CashInput) (entity.CashOperation, error) {
	if err := s.validateCash(ctx, in.Account, in.Amount); err != nil {
		return entity.CashOperation{}, err
	}
	to := in.Account
	op := entity.CashOperation{
		ID:            s.newID(),
		OperationType: entity.CashDeposit,
		Amount:        in.Amount,
		ToAccount:     &to,
		Notes:         in.Notes,
		Date:          s.now().UTC(),
	}
	if err := s.cashOperation(ctx, op, entity.TransactionIncome, map[entity.Account]decimal.Decimal{to: in.Amount}); err != nil {
		return entity.CashOperation{}, err
	}
	return op, nil
}

// Withdraw takes money out of an account and books it as expense.
func (s *Service) Withdraw(ctx context.Context, in CashInput) (entity.CashOperation, error) {
	if err := s.validateCash(ctx, in.Account, in.Amount); err != nil {
		return entity.CashOperation{}, err
	}
	from := in.Account
	op := entity.CashOperation{
		ID:            s.newID(),
		OperationType: entity.CashWithdrawal,
		Amount:        in.Amount,
		FromAccount:   &from,
		Notes:         in.Notes,
		Date:          s.now().UTC(),
	}
	if err := s.cashOperation(ctx, op, entity.TransactionExpense, map[entity.Account]decimal.Decimal{from: in.Amount.Neg()}); err != nil {
		return entity.CashOperation{}, err
	}
	return op, nil
}

// Transfer moves money between cash and bank. It books no income or expense.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (entity.CashOperation, error) {
	if err := s.validateCash(ctx, in.From, in.Amount); err != nil {
		return entity.CashOperation{}, err
	}
	if !in.To.Valid() {
		return entity.CashOperation{}, s.reject(ctx, apperror.NewValidation("unknown destination account").WithDetail("field", "to"))
	}
	if in.From == in.To {
		return entity.CashOperation{}, s.reject(ctx, apperror.NewValidation("cannot transfer between the same account"))
	}
	from, to := in.From, in.To
	op := entity.CashOperation{
		ID:            s.newID(),
		OperationType: entity.CashTransfer,
		Amount:        in.Amount,
		FromAccount:   &from,
		ToAccount:     &to,
		Notes:         in.Notes,
		Date:          s.now().UTC(),
	}
	err := s.cashOperation(ctx, op, "", map[entity.Account]decimal.Decimal{
		from: in.Amount.Neg(),
		to:   in.Amount,
	})
	if err != nil {
		return entity.CashOperation{}, err
	}
	return op, nil
}

func (s *Service) validateCash(ctx context.Context, account entity.Account, amount decimal.Decimal) error {
	if !account.Valid() {
		return s.reject(ctx, apperror.NewValidation("account must be cash or bank").WithDetail("field", "account"))
	}
	if !amount.IsPositive() {
		return s.reject(ctx, apperror.NewValidation("amount must be greater than zero").WithDetail("field", "amount"))
	}
	return nil
}

func (s *Service) reject(ctx context.Context, err *apperror.AppError) error {
	notify.Error(ctx, s.notifier, "Cash operation", err.Message)
	return err
}

func (s *Service) cashOperation(ctx context.Context, op entity.CashOperation, txType entity.TransactionType, deltas map[entity.Account]decimal.Decimal) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBalanceForUpdate(ctx)
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		next, err := applyDeltas(b, deltas)
		if err != nil {
			return err
		}
		next.LastUpdated = op.Date
		if err := s.repo.SaveBalance(ctx, next); err != nil {
			return fmt.Errorf("save balance: %w", err)
		}
		if err := s.repo.InsertCashOperation(ctx, op); err != nil {
			return fmt.Errorf("insert cash operation: %w", err)
		}
		if txType == "" {
			return nil
		}
		method := entity.PaymentCash
		if (op.ToAccount != nil && *op.ToAccount == entity.AccountBank) ||
			(op.FromAccount != nil && *op.FromAccount == entity.AccountBank) {
			method = entity.PaymentBankTransfer
		}
		return s.repo.InsertTransaction(ctx, entity.FinancialTransaction{
			ID:            s.newID(),
			Type:          txType,
			Amount:        op.Amount,
			Date:          op.Date,
			PaymentMethod: method,
			ReferenceID:   op.ID,
			ReferenceType: refCashOperation,
			Notes:         op.Notes,
			CreatedAt:     op.Date,
		})
	})
	if err != nil {
		return s.fail(ctx, err)
	}

	logger.Info(ctx, "cash operation recorded",
		"operation", op.OperationType, "amount", op.Amount, "operation_id", op.ID)
	s.publish(ctx, string(op.OperationType))
	return nil
}
