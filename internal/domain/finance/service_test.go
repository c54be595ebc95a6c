package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/core/entity"
	"factoryledger/internal/core/notify"
	"factoryledger/internal/core/tx/txtest"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeRepo struct {
	balance      *entity.FinancialBalance
	saves        int
	transactions []entity.FinancialTransaction
	operations   []entity.CashOperation
	saveErr      error
}

func (f *fakeRepo) GetBalance(context.Context) (entity.FinancialBalance, error) {
	if f.balance == nil {
		return entity.FinancialBalance{}, apperror.NewNotFound("financial balance", "1")
	}
	return *f.balance, nil
}

func (f *fakeRepo) GetBalanceForUpdate(context.Context) (entity.FinancialBalance, error) {
	if f.balance == nil {
		f.balance = &entity.FinancialBalance{ID: "1"}
	}
	return *f.balance, nil
}

func (f *fakeRepo) SaveBalance(_ context.Context, b entity.FinancialBalance) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.balance = &b
	return nil
}

func (f *fakeRepo) InsertTransaction(_ context.Context, t entity.FinancialTransaction) error {
	f.transactions = append(f.transactions, t)
	return nil
}

func (f *fakeRepo) InsertCashOperation(_ context.Context, op entity.CashOperation) error {
	f.operations = append(f.operations, op)
	return nil
}

type fakePublisher struct{ reasons []string }

func (p *fakePublisher) PublishFinancialChange(_ context.Context, reason string) {
	p.reasons = append(p.reasons, reason)
}

func newTestService(balance *entity.FinancialBalance) (*Service, *fakeRepo, *fakePublisher) {
	repo := &fakeRepo{balance: balance}
	pub := &fakePublisher{}
	svc := NewService(repo, &txtest.Manager{}, pub, notify.ContextNotifier{})
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, repo, pub
}

func TestGetCurrentBalance_MissingRowIsNil(t *testing.T) {
	svc, _, _ := newTestService(nil)

	b, err := svc.GetCurrentBalance(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestUpdateCashBalance_NeverNegative(t *testing.T) {
	svc, repo, pub := newTestService(&entity.FinancialBalance{ID: "1", CashBalance: d("100"), BankBalance: d("50")})
	collector := &notify.Collector{}
	ctx := notify.WithCollector(context.Background(), collector)

	deltas := []string{"-30", "-80", "20", "-90", "-0.01", "5"}
	for _, delta := range deltas {
		_, _ = svc.UpdateCashBalance(ctx, d(delta), "test")
		require.False(t, repo.balance.CashBalance.IsNegative())
	}

	// 100-30=70, -80 rejected, +20=90, -90=0, -0.01 rejected, +5=5
	assert.True(t, d("5").Equal(repo.balance.CashBalance))
	assert.True(t, d("50").Equal(repo.balance.BankBalance))
	assert.Equal(t, 4, repo.saves)
	assert.Len(t, pub.reasons, 4)
	assert.Len(t, collector.Items(), 2)
}

func TestUpdateBankBalance_RejectionHasNoEffect(t *testing.T) {
	svc, repo, _ := newTestService(&entity.FinancialBalance{ID: "1", CashBalance: d("10"), BankBalance: d("10")})

	_, err := svc.UpdateBankBalance(context.Background(), d("-10.5"), "fee")

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientBalance))
	assert.Zero(t, repo.saves)
	assert.True(t, d("10").Equal(repo.balance.BankBalance))
}

func TestUpdateBalanceByPaymentMethod_Routing(t *testing.T) {
	tests := []struct {
		method   entity.PaymentMethod
		isIncome bool
		wantCash string
		wantBank string
	}{
		{entity.PaymentCash, true, "125", "100"},
		{entity.PaymentOther, true, "125", "100"},
		{"", false, "75", "100"},
		{entity.PaymentBankTransfer, true, "100", "125"},
		{entity.PaymentCheck, false, "100", "75"},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			svc, repo, _ := newTestService(&entity.FinancialBalance{ID: "1", CashBalance: d("100"), BankBalance: d("100")})

			_, err := svc.UpdateBalanceByPaymentMethod(context.Background(), d("25"), tt.method, tt.isIncome, "invoice")
			require.NoError(t, err)
			assert.True(t, d(tt.wantCash).Equal(repo.balance.CashBalance), "cash %s", repo.balance.CashBalance)
			assert.True(t, d(tt.wantBank).Equal(repo.balance.BankBalance), "bank %s", repo.balance.BankBalance)
		})
	}
}

func TestUpdateBalancesManually(t *testing.T) {
	svc, repo, _ := newTestService(&entity.FinancialBalance{ID: "1", CashBalance: d("1"), BankBalance: d("1")})

	_, err := svc.UpdateBalancesManually(context.Background(), d("-1"), d("5"))
	require.Error(t, err)
	assert.Zero(t, repo.saves)

	b, err := svc.UpdateBalancesManually(context.Background(), d("300"), d("0"))
	require.NoError(t, err)
	assert.True(t, d("300").Equal(b.CashBalance))
	assert.True(t, b.BankBalance.IsZero())
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), b.LastUpdated)
}

func TestPersistenceErrorBecomesInternal(t *testing.T) {
	svc, repo, pub := newTestService(&entity.FinancialBalance{ID: "1", CashBalance: d("1")})
	repo.saveErr = errors.New("disk full")

	_, err := svc.UpdateCashBalance(context.Background(), d("1"), "x")

	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInternal))
	assert.Empty(t, pub.reasons)
}

func TestDepositAndWithdraw(t *testing.T) {
	svc, repo, _ := newTestService(&entity.FinancialBalance{ID: "1", CashBalance: d("0"), BankBalance: d("0")})
	ctx := context.Background()

	op, err := svc.Deposit(ctx, CashInput{Account: entity.AccountBank, Amount: d("500"), Notes: "capital"})
	require.NoError(t, err)
	assert.Equal(t, entity.CashDeposit, op.OperationType)
	assert.True(t, d("500").Equal(repo.balance.BankBalance))

	_, err = svc.Withdraw(ctx, CashInput{Account: entity.AccountBank, Amount: d("120")})
	require.NoError(t, err)
	assert.True(t, d("380").Equal(repo.balance.BankBalance))

	require.Len(t, repo.transactions, 2)
	assert.Equal(t, entity.TransactionIncome, repo.transactions[0].Type)
	assert.Equal(t, entity.TransactionExpense, repo.transactions[1].Type)
	assert.Equal(t, entity.PaymentBankTransfer, repo.transactions[1].PaymentMethod)
	assert.Equal(t, "cash_operation", repo.transactions[0].ReferenceType)
	assert.Equal(t, op.ID, repo.transactions[0].ReferenceID)

	failed, err := svc.Withdraw(ctx, CashInput{Account: entity.AccountCash, Amount: d("1")})
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientBalance))
	assert.Equal(t, entity.CashOperation{}, failed)
	assert.Len(t, repo.operations, 2)
}

func TestTransfer_Validation(t *testing.T) {
	svc, repo, _ := newTestService(&entity.FinancialBalance{ID: "1", CashBalance: d("100"), BankBalance: d("0")})
	ctx := context.Background()

	_, err := svc.Transfer(ctx, TransferInput{From: entity.AccountCash, To: entity.AccountBank, Amount: d("0")})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = svc.Transfer(ctx, TransferInput{From: entity.AccountCash, To: entity.AccountCash, Amount: d("10")})
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	failed, err := svc.Transfer(ctx, TransferInput{From: entity.AccountBank, To: entity.AccountCash, Amount: d("10")})
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientBalance))
	assert.Equal(t, entity.CashOperation{}, failed)
	assert.Zero(t, repo.saves)

	op, err := svc.Transfer(ctx, TransferInput{From: entity.AccountCash, To: entity.AccountBank, Amount: d("60")})
	require.NoError(t, err)
	assert.Equal(t, entity.CashTransfer, op.OperationType)
	assert.True(t, d("40").Equal(repo.balance.CashBalance))
	assert.True(t, d("60").Equal(repo.balance.BankBalance))
	assert.Empty(t, repo.transactions)
}
