package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey is the header integrators send their key in.
const HeaderAPIKey = "x-api-key"

// ctxKey is where the authenticated context is stashed in the gin context.
const ctxKey = "pesabridge.auth"

// Middleware authenticates every request on a protected route group. Missing
// or unknown keys get 401, resolvable-but-unusable accounts get 403, and an
// unreachable account store gets 503 so clients know the failure is
// retryable.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, err := g.Authenticate(c.GetHeader(HeaderAPIKey))
		if err != nil {
			c.AbortWithStatusJSON(StatusFor(err), gin.H{"error": Message(err)})
			return
		}
		c.Set(ctxKey, authCtx)
		c.Next()
	}
}

// FromGin returns the authenticated context attached by Middleware, or nil on
// an unguarded route.
func FromGin(c *gin.Context) *Context {
	v, ok := c.Get(ctxKey)
	if !ok {
		return nil
	}
	return v.(*Context)
}

// StatusFor maps an authentication failure to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized
	case AccountUnusable(err):
		return http.StatusForbidden
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message normalizes an authentication failure to the single message field
// clients see. Store internals are logged, never returned.
func Message(err error) string {
	for _, sentinel := range []error{
		ErrMissingCredential, ErrInvalidCredential, ErrAccountNotFound, ErrAccountSuspended,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	slog.Error("authentication failed upstream", "error", err)
	return "Service temporarily unavailable"
}
