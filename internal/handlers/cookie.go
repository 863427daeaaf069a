package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tempora-hq/timetrack-api/internal/middleware"
)

// CookieHelper manages the jwt auth cookie for browser clients.
type CookieHelper struct {
	secure bool
}

// NewCookieHelper creates a cookie helper. Secure cookies are enabled
// in production.
func NewCookieHelper(secure bool) *CookieHelper {
	return &CookieHelper{secure: secure}
}

// SetAuthCookie stores the token in an httpOnly cookie matching the
// token lifetime.
func (h *CookieHelper) SetAuthCookie(c *gin.Context, token string, expiry time.Duration) {
	h.set(c, token, int(expiry.Seconds()))
}

// ClearAuthCookie removes the auth cookie.
func (h *CookieHelper) ClearAuthCookie(c *gin.Context) {
	h.set(c, "", -1)
}

func (h *CookieHelper) set(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		middleware.JWTCookie,
		value,
		maxAge,
		"/",
		"",
		h.secure,
		true, // httpOnly - always true for auth cookies
	)
}
