package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"factoryledger/internal/domain/status"
	"factoryledger/internal/infrastructure/http/v1/dto"
	"factoryledger/internal/infrastructure/http/v1/middleware"
)

// StatusChanger persists a status and announces the transition.
type StatusChanger interface {
	Change(ctx context.Context, kind status.Kind, id, newStatus string) (status.Change, error)
}

// StatusHandler serves PUT /<documents>/:id/status.
type StatusHandler struct {
	*BaseHandler
	statuses StatusChanger
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(base *BaseHandler, statuses StatusChanger) *StatusHandler {
	return &StatusHandler{BaseHandler: base, statuses: statuses}
}

// RegisterRoutes mounts one status endpoint per document kind.
func (h *StatusHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/production-orders/:id/status", h.For(status.KindProductionOrder))
	rg.PUT("/packaging-orders/:id/status", h.For(status.KindPackagingOrder))
	rg.PUT("/invoices/:id/status", h.For(status.KindInvoice))
	rg.PUT("/returns/:id/status", h.For(status.KindReturn))
}

// For returns the handler changing documents of kind.
func (h *StatusHandler) For(kind status.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.ChangeStatusRequest
		if !h.BindJSON(c, &req) {
			return
		}

		change, err := h.statuses.Change(c.Request.Context(), kind, c.Param("id"), req.Status)
		if err != nil {
			h.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.DataResponse{
			Data:          change,
			Notifications: middleware.CollectedNotifications(c),
		})
	}
}
