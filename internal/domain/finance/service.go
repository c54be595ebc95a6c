package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/id"
	"factoryledger/internal/core/notify"
	"factoryledger/internal/core/tx"
	"factoryledger/pkg/logger"
)

// Service mutates the cash and bank balances. Every write locks the balance
// row for the duration of its transaction and is rejected if it would leave
// either account negative.
type Service struct {
	repo      Repository
	txManager tx.Manager
	publisher Publisher
	notifier  notify.Notifier
	now       func() time.Time
}

// NewService creates a finance service. publisher may be nil.
func NewService(repo Repository, txManager tx.Manager, publisher Publisher, notifier notify.Notifier) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		publisher: publisher,
		notifier:  notifier,
		now:       time.Now,
	}
}

// GetCurrentBalance returns the balance row, or nil when it has not been created yet.
func (s *Service) GetCurrentBalance(ctx context.Context) (*entity.FinancialBalance, error) {
	b, err := s.repo.GetBalance(ctx)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil
		}
		logger.Error(ctx, "failed to load financial balance", "error", err)
		notify.Error(ctx, s.notifier, "Financial balance", "Could not load the current balance")
		return nil, apperror.NewInternal(fmt.Errorf("get balance: %w", err))
	}
	return &b, nil
}

// UpdateCashBalance adds delta to the cash account.
func (s *Service) UpdateCashBalance(ctx context.Context, delta decimal.Decimal, reason string) (entity.FinancialBalance, error) {
	return s.apply(ctx, reason, map[entity.Account]decimal.Decimal{entity.AccountCash: delta})
}

// UpdateBankBalance adds delta to the bank account.
func (s *Service) UpdateBankBalance(ctx context.Context, delta decimal.Decimal, reason string) (entity.FinancialBalance, error) {
	return s.apply(ctx, reason, map[entity.Account]decimal.Decimal{entity.AccountBank: delta})
}

// UpdateBalanceByPaymentMethod routes amount to the account the payment method settles into.
// Income adds, expense subtracts.
func (s *Service) UpdateBalanceByPaymentMethod(ctx context.Context, amount decimal.Decimal, method entity.PaymentMethod, isIncome bool, reason string) (entity.FinancialBalance, error) {
	delta := amount.Abs()
	if !isIncome {
		delta = delta.Neg()
	}
	return s.apply(ctx, reason, map[entity.Account]decimal.Decimal{method.Account(): delta})
}

// UpdateBalancesManually overwrites both balances.
func (s *Service) UpdateBalancesManually(ctx context.Context, cash, bank decimal.Decimal) (entity.FinancialBalance, error) {
	if cash.IsNegative() || bank.IsNegative() {
		err := apperror.NewValidation("balances cannot be negative").
			WithDetail("cash", cash.String()).
			WithDetail("bank", bank.String())
		notify.Error(ctx, s.notifier, "Financial balance", err.Message)
		return entity.FinancialBalance{}, err
	}

	var result entity.FinancialBalance
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBalanceForUpdate(ctx)
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		b.CashBalance, b.BankBalance = cash, bank
		b.LastUpdated = s.now().UTC()
		if err := s.repo.SaveBalance(ctx, b); err != nil {
			return fmt.Errorf("save balance: %w", err)
		}
		result = b
		return nil
	})
	if err != nil {
		return entity.FinancialBalance{}, s.fail(ctx, err)
	}

	logger.Info(ctx, "balances set manually", "cash", cash, "bank", bank)
	s.publish(ctx, "manual balance update")
	return result, nil
}

// apply adds every delta inside one locked transaction.
func (s *Service) apply(ctx context.Context, reason string, deltas map[entity.Account]decimal.Decimal) (entity.FinancialBalance, error) {
	var result entity.FinancialBalance
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBalanceForUpdate(ctx)
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		next, err := applyDeltas(b, deltas)
		if err != nil {
			return err
		}
		next.LastUpdated = s.now().UTC()
		if err := s.repo.SaveBalance(ctx, next); err != nil {
			return fmt.Errorf("save balance: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return entity.FinancialBalance{}, s.fail(ctx, err)
	}

	logger.Info(ctx, "balance updated",
		"reason", reason,
		"cash_balance", result.CashBalance,
		"bank_balance", result.BankBalance,
	)
	s.publish(ctx, reason)
	return result, nil
}

func applyDeltas(b entity.FinancialBalance, deltas map[entity.Account]decimal.Decimal) (entity.FinancialBalance, error) {
	for _, account := range []entity.Account{entity.AccountCash, entity.AccountBank} {
		delta, ok := deltas[account]
		if !ok {
			continue
		}
		next := b.Of(account).Add(delta)
		if next.IsNegative() {
			return b, apperror.NewInsufficientBalance(string(account), b.Of(account).String(), delta.String())
		}
		if account == entity.AccountCash {
			b.CashBalance = next
		} else {
			b.BankBalance = next
		}
	}
	return b, nil
}

func (s *Service) fail(ctx context.Context, err error) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		logger.Warn(ctx, "balance update rejected", "code", appErr.Code, "details", appErr.Details)
		notify.Error(ctx, s.notifier, "Financial balance", appErr.Message)
		return appErr
	}
	logger.Error(ctx, "balance update failed", "error", err)
	notify.Error(ctx, s.notifier, "Financial balance", "Could not update the balance")
	return apperror.NewInternal(err)
}

func (s *Service) publish(ctx context.Context, reason string) {
	if s.publisher != nil {
		s.publisher.PublishFinancialChange(ctx, reason)
	}
}

func (s *Service) newID() string {
	return id.NewString()
}
