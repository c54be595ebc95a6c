package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"factoryledger/internal/core/apperror"
	"factoryledger/internal/domain/restore"
)

// Restorer imports backups.
type Restorer interface {
	Restore(ctx context.Context, backup map[string][]restore.Row) (restore.Result, error)
}

// RestoreHandler serves POST /restore.
type RestoreHandler struct {
	*BaseHandler
	restorer Restorer
}

// NewRestoreHandler creates a restore handler.
func NewRestoreHandler(base *BaseHandler, r Restorer) *RestoreHandler {
	return &RestoreHandler{BaseHandler: base, restorer: r}
}

// Restore imports a backup body of the form {"table": [row, ...]}.
// The response is 200 when the error count stays within tolerance, 422 otherwise.
// POST /restore
func (h *RestoreHandler) Restore(c *gin.Context) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()

	var backup map[string][]restore.Row
	if err := dec.Decode(&backup); err != nil {
		h.Error(c, apperror.NewValidation("invalid backup body").WithDetail("error", err.Error()))
		return
	}

	res, err := h.restorer.Restore(c.Request.Context(), backup)
	if err != nil {
		h.Error(c, err)
		return
	}

	code := http.StatusOK
	if !res.Success {
		code = http.StatusUnprocessableEntity
	}
	c.JSON(code, res)
}
