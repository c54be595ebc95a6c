// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"factoryledger/internal/core/apperror"
	"factoryledger/pkg/logger"
)

// Recovery converts a handler panic into an INTERNAL_ERROR response and
// marks the request span as failed. It renders the response itself since
// the panic unwinds past ErrorHandler.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			cause := fmt.Errorf("panic: %v", rec)

			span := trace.SpanFromContext(ctx)
			span.RecordError(cause)
			span.SetStatus(codes.Error, "panic")

			logger.Error(ctx, "panic recovered",
				"error", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)

			appErr := apperror.NewInternal(cause).WithDetail("request_id", c.GetString("request_id"))
			_ = c.Error(appErr)
			c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			})
		}()
		c.Next()
	}
}
