// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Tokens are JWTs issued by
// the auth package; the middleware verifies the signature and expiry, resolves
// the subject to a local account, and stores the identity in the Gin context
// for handlers and downstream middleware (logging, rate limiting).
//
// The streaming endpoint is consumed through EventSource, which cannot set
// request headers, so RequireAuth optionally accepts the token as a ?token=
// query parameter.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/persona-chat/go-persona-backend/internal/domain"
)

// Context keys for the authenticated identity.
const (
	ctxKeyUserID    = "userID"
	ctxKeyUserEmail = "userEmail"
	ctxKeyUser      = "user"
)

// TokenVerifier validates an access token and returns its subject (email).
type TokenVerifier interface {
	VerifyAccess(token string) (string, error)
}

// UserResolver loads the account behind a verified token subject.
type UserResolver func(ctx context.Context, email string) (*domain.User, error)

// AuthOptions configures RequireAuth.
type AuthOptions struct {
	// AllowQueryToken also accepts the token via the "token" query parameter.
	// Enable only on endpoints that cannot send headers (SSE).
	AllowQueryToken bool
}

// UserID returns the authenticated account id stored by RequireAuth.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxKeyUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// UserFrom returns the full authenticated account, when present.
func UserFrom(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}

// RequireAuth returns a middleware that rejects requests without a valid
// access token. On success the account id, email, and record are stored in
// the Gin context.
func RequireAuth(verifier TokenVerifier, resolve UserResolver, opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" && opts.AllowQueryToken {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			abortUnauthorized(c, "missing credentials")
			return
		}

		email, err := verifier.VerifyAccess(token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		u, err := resolve(c.Request.Context(), email)
		if err != nil {
			abortUnauthorized(c, "account not found")
			return
		}
		if !u.IsActive {
			abortUnauthorized(c, "account disabled")
			return
		}

		c.Set(ctxKeyUserID, u.ID)
		c.Set(ctxKeyUserEmail, u.Email)
		c.Set(ctxKeyUser, u)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "unauthorized",
		"message":    msg,
	})
}
