package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factoryledger/internal/core/apperror"
)

func newPanicRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Trace(), Recovery(), ErrorHandler())
	r.GET("/boom", func(c *gin.Context) { panic("stock table gone") })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRecovery_RendersInternalError(t *testing.T) {
	r := newPanicRouter()

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))

	var body struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.Equal(t, "req-42", body.Details["request_id"])
	assert.NotContains(t, w.Body.String(), "stock table gone")
}

func TestRecovery_PassesThrough(t *testing.T) {
	r := newPanicRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}
