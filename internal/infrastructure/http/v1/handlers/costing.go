package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"factoryledger/internal/core/entity"
	"factoryledger/internal/domain/costing"
)

// CostService is the part of costing.Service exposed over HTTP.
type CostService interface {
	ResolveSemiFinishedCost(ctx context.Context, id string) (costing.Breakdown, error)
	ResolveFinishedCost(ctx context.Context, id string) (costing.Breakdown, error)
	PropagateRawMaterialCost(ctx context.Context, rawMaterialID string) ([]costing.CostChange, error)
	PropagatePackagingCost(ctx context.Context, packagingID string) ([]costing.CostChange, error)
	LowStock(ctx context.Context, itemType entity.ItemType) ([]entity.StockItem, error)
}

// CostingHandler serves /costing.
type CostingHandler struct {
	*BaseHandler
	costs CostService
}

// NewCostingHandler creates a costing handler.
func NewCostingHandler(base *BaseHandler, costs CostService) *CostingHandler {
	return &CostingHandler{BaseHandler: base, costs: costs}
}

// RegisterRoutes mounts the costing endpoints on rg.
func (h *CostingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/semi-finished/:id", h.SemiFinished)
	rg.GET("/finished/:id", h.Finished)
	rg.POST("/raw-materials/:id/propagate", h.PropagateRaw)
	rg.POST("/packaging/:id/propagate", h.PropagatePackaging)
	rg.GET("/low-stock/:itemType", h.LowStock)
}

func (h *CostingHandler) breakdown(c *gin.Context, resolve func(context.Context, string) (costing.Breakdown, error)) {
	b, err := resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// SemiFinished returns the weighted raw-material cost of a semi-finished product.
// GET /costing/semi-finished/:id
func (h *CostingHandler) SemiFinished(c *gin.Context) {
	h.breakdown(c, h.costs.ResolveSemiFinishedCost)
}

// Finished returns the cost of a finished product.
// GET /costing/finished/:id
func (h *CostingHandler) Finished(c *gin.Context) {
	h.breakdown(c, h.costs.ResolveFinishedCost)
}

func (h *CostingHandler) propagate(c *gin.Context, run func(context.Context, string) ([]costing.CostChange, error)) {
	changes, err := run(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}

// PropagateRaw recomputes products that use a raw material.
// POST /costing/raw-materials/:id/propagate
func (h *CostingHandler) PropagateRaw(c *gin.Context) {
	h.propagate(c, h.costs.PropagateRawMaterialCost)
}

// PropagatePackaging recomputes finished products that use a packaging material.
// POST /costing/packaging/:id/propagate
func (h *CostingHandler) PropagatePackaging(c *gin.Context) {
	h.propagate(c, h.costs.PropagatePackagingCost)
}

// LowStock lists items at or below their minimum stock.
// GET /costing/low-stock/:itemType
func (h *CostingHandler) LowStock(c *gin.Context) {
	itemType, err := entity.ParseItemType(c.Param("itemType"))
	if err != nil {
		h.Error(c, err)
		return
	}

	items, err := h.costs.LowStock(c.Request.Context(), itemType)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
