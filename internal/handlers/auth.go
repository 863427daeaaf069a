package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tempora-hq/timetrack-api/internal/metrics"
	"github.com/tempora-hq/timetrack-api/internal/middleware"
	"github.com/tempora-hq/timetrack-api/internal/models"
	"github.com/tempora-hq/timetrack-api/internal/repository"
	"github.com/tempora-hq/timetrack-api/internal/service"
)

// AuthHandler handles authentication HTTP requests.
type AuthHandler struct {
	authService service.AuthService
	auditRepo   repository.AuditLogRepository
	cookies     *CookieHelper
	tokenExpiry time.Duration
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(
	authService service.AuthService,
	auditRepo repository.AuditLogRepository,
	cookies *CookieHelper,
	tokens service.TokenService,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		auditRepo:   auditRepo,
		cookies:     cookies,
		tokenExpiry: tokens.Expiry(),
		metrics:     m,
		log:         log,
	}
}

// LoginRequest represents the login request payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// RefreshRequest represents the token refresh request payload.
type RefreshRequest struct {
	Token string `json:"token" binding:"required"`
}

// SSOUserRequest represents the SSO provisioning request payload.
type SSOUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"displayName" binding:"required"`
	TenantID    string `json:"tenantId" binding:"required"`
	ObjectID    string `json:"objectId" binding:"required"`
}

// AssignRolesRequest represents the role assignment request payload.
type AssignRolesRequest struct {
	Roles []string `json:"roles" binding:"required"`
}

// Login godoc
// @Summary User login
// @Description Authenticate with email and password, returning a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} service.LoginResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.Logins.WithLabelValues("failure").Inc()
		h.audit(c, models.AuditLog{
			Action:  models.AuditLoginFailure,
			Success: false,
			Details: req.Email,
		})
		respondServiceError(c, h.log, err)
		return
	}

	h.metrics.Logins.WithLabelValues("success").Inc()
	h.audit(c, models.AuditLog{
		UserID:  response.User.ID,
		Action:  models.AuditLoginSuccess,
		Success: true,
	})

	h.cookies.SetAuthCookie(c, response.Token, h.tokenExpiry)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   response.Token,
		"user":    response.User,
	})
}

// Refresh godoc
// @Summary Refresh token
// @Description Supersede the presented token with a freshly issued one
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Current token"
// @Success 200 {object} service.LoginResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "token is required")
		return
	}

	response, err := h.authService.Refresh(c.Request.Context(), req.Token)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.metrics.TokenRefreshes.Inc()
	h.audit(c, models.AuditLog{
		UserID:  response.User.ID,
		Action:  models.AuditTokenRefresh,
		Success: true,
	})

	h.cookies.SetAuthCookie(c, response.Token, h.tokenExpiry)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   response.Token,
		"user":    response.User,
	})
}

// Logout godoc
// @Summary User logout
// @Description Invalidate the session cache entry and clear the cookie
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := middleware.ExtractToken(c)
	if token != "" {
		// The route is not behind Authenticate, so resolve the session
		// before it is invalidated to know whose logout to audit.
		entry, ok := middleware.AuthFromContext(c)
		if !ok {
			if cached, err := h.authService.CurrentSession(c.Request.Context(), token); err == nil {
				entry, ok = cached, true
			}
		}

		if err := h.authService.Logout(c.Request.Context(), token); err != nil {
			respondServiceError(c, h.log, err)
			return
		}
		if ok {
			h.audit(c, models.AuditLog{
				UserID:  entry.UserID,
				Action:  models.AuditLogout,
				Success: true,
			})
		}
	}

	h.cookies.ClearAuthCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// Me godoc
// @Summary Current session
// @Description Return the cached claim set for the presented token
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} session.Entry
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	entry, ok := middleware.AuthFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "token expired or invalid")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// SSOUser godoc
// @Summary Provision SSO user
// @Description Look up or create a user from an external identity assertion
// @Tags auth
// @Accept json
// @Produce json
// @Param request body SSOUserRequest true "Identity assertion"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /auth/sso-user [post]
func (h *AuthHandler) SSOUser(c *gin.Context) {
	var req SSOUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "email, displayName, tenantId and objectId are required")
		return
	}

	user, isNew, err := h.authService.ProvisionSSOUser(c.Request.Context(), service.SSOUserInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		TenantID:    req.TenantID,
		ObjectID:    req.ObjectID,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "isNew": isNew})
}

// AssignRoles godoc
// @Summary Assign user roles
// @Description Replace a user's role set and revoke their cached sessions
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body AssignRolesRequest true "Role ids"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/users/{id}/roles [put]
func (h *AuthHandler) AssignRoles(c *gin.Context) {
	var req AssignRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "roles are required")
		return
	}

	userID := c.Param("id")
	if err := h.authService.AssignRoles(c.Request.Context(), userID, req.Roles); err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) audit(c *gin.Context, entry models.AuditLog) {
	entry.IPAddress = c.ClientIP()
	if err := h.auditRepo.Record(c.Request.Context(), entry); err != nil {
		h.log.Error().Err(err).Str("action", entry.Action).Msg("audit write failed")
	}
}
