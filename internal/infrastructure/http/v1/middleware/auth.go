package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"factoryledger/internal/core/apperror"
	appctx "factoryledger/internal/core/context"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

func bearer(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setActor(c *gin.Context, actor *appctx.Actor) {
	c.Request = c.Request.WithContext(appctx.WithActor(c.Request.Context(), actor))
	c.Set("user_id", actor.UserID)
}

// Auth requires a valid bearer token and stores the actor in the request context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		actor, err := validator.ValidateToken(token)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}

		setActor(c, actor)
		c.Next()
	}
}

// OptionalAuth sets the actor when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearer(c); ok && validator != nil {
			if actor, err := validator.ValidateToken(token); err == nil && actor != nil {
				setActor(c, actor)
			}
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
