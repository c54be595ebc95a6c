package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/movement"
	"factoryledger/internal/domain/posting"
	"factoryledger/internal/infrastructure/http/v1/dto"
	"factoryledger/internal/infrastructure/http/v1/middleware"
)

// MovementReader is the read side of the movement register.
type MovementReader interface {
	List(ctx context.Context, filter movement.Filter) []entity.InventoryMovement
	Statistics(ctx context.Context, period movement.Period) movement.Statistics
	VerifyItem(ctx context.Context, itemType entity.ItemType, itemID string) (movement.Audit, error)
}

// StockAdjuster applies manual stock corrections.
type StockAdjuster interface {
	Adjust(ctx context.Context, in posting.AdjustInput) (posting.ItemResult, error)
}

// MovementHandler serves /movements.
type MovementHandler struct {
	*BaseHandler
	movements MovementReader
	adjuster  StockAdjuster
}

// NewMovementHandler creates a movement handler.
func NewMovementHandler(base *BaseHandler, movements MovementReader, adjuster StockAdjuster) *MovementHandler {
	return &MovementHandler{BaseHandler: base, movements: movements, adjuster: adjuster}
}

// RegisterRoutes mounts the movement endpoints on rg.
func (h *MovementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Adjust)
	rg.GET("/statistics", h.Statistics)
	rg.GET("/verify/:itemType/:itemId", h.Verify)
}

// List returns movements newest first.
// GET /movements
func (h *MovementHandler) List(c *gin.Context) {
	var q dto.MovementListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	items := h.movements.List(c.Request.Context(), filter)
	c.JSON(http.StatusOK, dto.ListResponse{
		Items:         items,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
		Notifications: middleware.CollectedNotifications(c),
	})
}

// Statistics returns totals over a rolling window.
// GET /movements/statistics?period=day|week|month|year
func (h *MovementHandler) Statistics(c *gin.Context) {
	period, err := movement.ParsePeriod(c.Query("period"))
	if err != nil {
		h.Error(c, err)
		return
	}

	stats := h.movements.Statistics(c.Request.Context(), period)
	c.JSON(http.StatusOK, dto.DataResponse{
		Data:          stats,
		Notifications: middleware.CollectedNotifications(c),
	})
}

// Verify replays one item's movements against its stored quantity.
// GET /movements/verify/:itemType/:itemId
func (h *MovementHandler) Verify(c *gin.Context) {
	itemType, err := entity.ParseItemType(c.Param("itemType"))
	if err != nil {
		h.Error(c, err)
		return
	}

	audit, err := h.movements.VerifyItem(c.Request.Context(), itemType, c.Param("itemId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

// Adjust applies a manual stock correction.
// POST /movements
func (h *MovementHandler) Adjust(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.adjuster.Adjust(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
