// Package middleware provides HTTP middleware for the timetrack service.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tempora-hq/timetrack-api/internal/metrics"
	"github.com/tempora-hq/timetrack-api/internal/rbac"
	"github.com/tempora-hq/timetrack-api/internal/session"
)

// Context keys set by Authenticate.
const (
	ContextAuthKey  = "auth"
	ContextTokenKey = "auth_token"
)

// JWTCookie is the cookie used as a fallback token carrier for
// browser clients.
const JWTCookie = "jwt"

// Authenticate resolves the bearer token against the session cache and
// injects the cached claim set into the request context. A cache miss
// is a 401, full stop: the middleware never re-verifies the token's
// signature, so an evicted session is revoked immediately even while
// the raw token would still validate.
func Authenticate(cache *session.Cache, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		entry, err := cache.Get(c.Request.Context(), token)
		if errors.Is(err, session.ErrNotCached) {
			m.SessionLookups.WithLabelValues("miss").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired or invalid"})
			return
		}
		if err != nil {
			m.SessionLookups.WithLabelValues("error").Inc()
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		m.SessionLookups.WithLabelValues("hit").Inc()
		c.Set(ContextAuthKey, entry)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

// RequirePermission aborts with 403 before any handler side effect
// unless the cached claim set carries the admin bypass or the exact
// required permission.
func RequirePermission(required rbac.Permission, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, ok := AuthFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		if !rbac.IsAdmin(entry.Permissions) && !rbac.Has(entry.Permissions, required) {
			m.PermissionDenials.Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// AuthFromContext returns the cached claim set placed by Authenticate.
func AuthFromContext(c *gin.Context) (*session.Entry, bool) {
	value, exists := c.Get(ContextAuthKey)
	if !exists {
		return nil, false
	}
	entry, ok := value.(*session.Entry)
	return entry, ok
}

// ExtractToken returns the bearer token from the Authorization header,
// falling back to the jwt cookie set at login.
func ExtractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	if cookie, err := c.Cookie(JWTCookie); err == nil {
		return cookie
	}
	return ""
}
