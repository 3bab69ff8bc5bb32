package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	"github.com/tilsley/stockroom/pkg/api"
)

// Authenticator resolves bearer tokens. *accounts.Service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*accounts.Principal, error)
}

// Compile-time check: *accounts.Service implements Authenticator.
var _ Authenticator = (*accounts.Service)(nil)

// RequireAuth rejects requests without a valid bearer token with 401 and
// stores the caller's principal on the request context otherwise.
func RequireAuth(auth Authenticator, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}
		p, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			var unauth accounts.UnauthenticatedError
			if errors.As(err, &unauth) {
				unauthorized(c, err.Error())
				return
			}
			log.Error("authentication failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Request = c.Request.WithContext(accounts.WithPrincipal(c.Request.Context(), *p))
		c.Next()
	}
}

// RequireRole rejects callers whose role ranks below required with 403.
// It must run after RequireAuth.
func RequireRole(required api.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := accounts.PrincipalFrom(c.Request.Context())
		if !ok {
			unauthorized(c, "not signed in")
			return
		}
		if !p.Allows(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "requires role " + string(required)})
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the caller set by RequireAuth.
func CurrentPrincipal(c *gin.Context) accounts.Principal {
	p, _ := accounts.PrincipalFrom(c.Request.Context())
	return p
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="stockroom"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
