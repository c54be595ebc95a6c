package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/bridge"
	"factoryledger/internal/domain/finance"
	"factoryledger/internal/infrastructure/http/v1/dto"
)

// BalanceService is the part of finance.Service exposed over HTTP.
type BalanceService interface {
	GetCurrentBalance(ctx context.Context) (*entity.FinancialBalance, error)
	UpdateBalancesManually(ctx context.Context, cash, bank decimal.Decimal) (entity.FinancialBalance, error)
	Deposit(ctx context.Context, in finance.CashInput) (entity.CashOperation, error)
	Withdraw(ctx context.Context, in finance.CashInput) (entity.CashOperation, error)
	Transfer(ctx context.Context, in finance.TransferInput) (entity.CashOperation, error)
}

// CommercialBridge books commercial documents into finance.
type CommercialBridge interface {
	HandlePaymentConfirmation(ctx context.Context, p entity.Payment) (bridge.Outcome, error)
	HandleCommercialCancellation(ctx context.Context, in bridge.CancellationInput) (bridge.Outcome, error)
}

// FinanceHandler serves /finance.
type FinanceHandler struct {
	*BaseHandler
	balances BalanceService
	bridge   CommercialBridge
	now      func() time.Time
}

// NewFinanceHandler creates a finance handler.
func NewFinanceHandler(base *BaseHandler, balances BalanceService, b CommercialBridge) *FinanceHandler {
	return &FinanceHandler{BaseHandler: base, balances: balances, bridge: b, now: time.Now}
}

// RegisterRoutes mounts the finance endpoints on rg.
func (h *FinanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/balance", h.GetBalance)
	rg.PUT("/balance", h.SetBalance)

	ops := rg.Group("/cash-operations")
	ops.POST("/deposit", h.Deposit)
	ops.POST("/withdraw", h.Withdraw)
	ops.POST("/transfer", h.Transfer)

	rg.POST("/payments/confirm", h.ConfirmPayment)
	rg.POST("/commercial/cancel", h.CancelCommercial)
}

// GetBalance returns the current balances, or null when none were ever set.
// GET /finance/balance
func (h *FinanceHandler) GetBalance(c *gin.Context) {
	b, err := h.balances.GetCurrentBalance(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": b})
}

// SetBalance overwrites both balances.
// PUT /finance/balance
func (h *FinanceHandler) SetBalance(c *gin.Context) {
	var req dto.SetBalanceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	b, err := h.balances.UpdateBalancesManually(c.Request.Context(), req.CashBalance, req.BankBalance)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": b})
}

func (h *FinanceHandler) cash(c *gin.Context, run func(context.Context, finance.CashInput) (entity.CashOperation, error)) {
	var req dto.CashRequest
	if !h.BindJSON(c, &req) {
		return
	}

	op, err := run(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, op)
}

// Deposit adds money to an account.
// POST /finance/cash-operations/deposit
func (h *FinanceHandler) Deposit(c *gin.Context) {
	h.cash(c, h.balances.Deposit)
}

// Withdraw takes money from an account.
// POST /finance/cash-operations/withdraw
func (h *FinanceHandler) Withdraw(c *gin.Context) {
	h.cash(c, h.balances.Withdraw)
}

// Transfer moves money between cash and bank.
// POST /finance/cash-operations/transfer
func (h *FinanceHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	op, err := h.balances.Transfer(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, op)
}

// ConfirmPayment books a confirmed payment once.
// POST /finance/payments/confirm
func (h *FinanceHandler) ConfirmPayment(c *gin.Context) {
	var req dto.ConfirmPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	out, err := h.bridge.HandlePaymentConfirmation(c.Request.Context(), req.ToEntity(h.now()))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CancelCommercial reverses a confirmed invoice or payment once.
// POST /finance/commercial/cancel
func (h *FinanceHandler) CancelCommercial(c *gin.Context) {
	var req dto.CancelCommercialRequest
	if !h.BindJSON(c, &req) {
		return
	}

	out, err := h.bridge.HandleCommercialCancellation(c.Request.Context(), req.ToInput(h.now()))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
