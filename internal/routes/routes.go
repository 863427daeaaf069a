// Package routes defines HTTP routes for the timetrack service.
package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tempora-hq/timetrack-api/internal/config"
	"github.com/tempora-hq/timetrack-api/internal/handlers"
	"github.com/tempora-hq/timetrack-api/internal/metrics"
	"github.com/tempora-hq/timetrack-api/internal/middleware"
	"github.com/tempora-hq/timetrack-api/internal/rbac"
	"github.com/tempora-hq/timetrack-api/internal/session"
)

// Setup configures all HTTP routes for the application.
func Setup(
	router *gin.Engine,
	cfg *config.Config,
	cache *session.Cache,
	m *metrics.Metrics,
	authHandler *handlers.AuthHandler,
	timeLogHandler *handlers.TimeLogHandler,
	healthHandler *handlers.HealthHandler,
) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	router.Use(middleware.CSRF(cfg.AllowedOrigins))
	router.Use(m.Middleware())

	// Health check
	router.GET("/health", healthHandler.Check)
	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes. Login, refresh and SSO provisioning are reachable
	// without a live session; logout and me are session-backed.
	auth := router.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/sso-user", authHandler.SSOUser)
		auth.GET("/me", middleware.Authenticate(cache, m), authHandler.Me)
	}

	// Protected API routes.
	api := router.Group("/api", middleware.Authenticate(cache, m))
	{
		timeGroup := api.Group("/time")
		{
			timeGroup.GET("/logs", timeLogHandler.List)
			timeGroup.POST("/logs", middleware.RequirePermission(rbac.PermWriteTimeLogs, m), timeLogHandler.Create)
			timeGroup.PATCH("/logs/:id", middleware.RequirePermission(rbac.PermWriteTimeLogs, m), timeLogHandler.Update)
			timeGroup.DELETE("/logs/:id", middleware.RequirePermission(rbac.PermWriteTimeLogs, m), timeLogHandler.Delete)
			timeGroup.GET("/summary", timeLogHandler.Summary)
		}

		users := api.Group("/users")
		{
			users.PUT("/:id/roles", middleware.RequirePermission(rbac.PermAdminUsers, m), authHandler.AssignRoles)
		}
	}
}
