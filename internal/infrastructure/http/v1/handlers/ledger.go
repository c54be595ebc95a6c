package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"factoryledger/internal/domain/ledger"
)

// LedgerService is the part of ledger.Service exposed over HTTP.
type LedgerService interface {
	RecalculatePartyBalances(ctx context.Context) (ledger.ReconcileReport, error)
	Statement(ctx context.Context, partyID string) (ledger.Statement, error)
}

// LedgerHandler serves /ledger.
type LedgerHandler struct {
	*BaseHandler
	ledger LedgerService
}

// NewLedgerHandler creates a ledger handler.
func NewLedgerHandler(base *BaseHandler, l LedgerService) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, ledger: l}
}

// RegisterRoutes mounts the ledger endpoints on rg.
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reconcile", h.Reconcile)
	rg.GET("/parties/:id", h.Statement)
}

// Reconcile recomputes every party's running balances.
// POST /ledger/reconcile
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	report, err := h.ledger.RecalculatePartyBalances(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Statement returns a party's entries and balance.
// GET /ledger/parties/:id
func (h *LedgerHandler) Statement(c *gin.Context) {
	st, err := h.ledger.Statement(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
