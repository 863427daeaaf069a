// Package main is the entry point for the timetrack API service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tempora-hq/timetrack-api/internal/config"
	"github.com/tempora-hq/timetrack-api/internal/handlers"
	"github.com/tempora-hq/timetrack-api/internal/metrics"
	"github.com/tempora-hq/timetrack-api/internal/models"
	"github.com/tempora-hq/timetrack-api/internal/repository"
	"github.com/tempora-hq/timetrack-api/internal/routes"
	"github.com/tempora-hq/timetrack-api/internal/service"
	"github.com/tempora-hq/timetrack-api/internal/session"
	redisclient "github.com/tempora-hq/timetrack-api/pkg/redis"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "timetrack-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration error")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Database. Lifecycle is owned here: connect at startup, close on
	// exit, hand explicit clients down the stack.
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.ConsentRecord{}, &models.Role{},
		&models.UserRole{}, &models.TimeLog{}, &models.AuditLog{},
	); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	// Cache.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	redisClient, err := redisclient.NewClient(ctx, redisclient.Options{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		UseTLS:   cfg.IsProduction() && cfg.RedisPassword != "",
	})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	timeLogRepo := repository.NewTimeLogRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services.
	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.TokenExpiry)
	if tokenService == nil {
		logger.Fatal().Msg("JWT_SECRET must be at least 32 bytes")
	}
	sessionCache := session.NewCache(redisClient)
	authService := service.NewAuthService(userRepo, auditRepo, tokenService, sessionCache, cfg.SessionTTL, logger)

	// Handlers.
	m := metrics.New(prometheus.DefaultRegisterer)
	cookies := handlers.NewCookieHelper(cfg.IsProduction())
	authHandler := handlers.NewAuthHandler(authService, auditRepo, cookies, tokenService, m, logger)
	timeLogHandler := handlers.NewTimeLogHandler(timeLogRepo, userRepo, auditRepo, redisClient, logger)
	healthHandler := handlers.NewHealthHandler()

	router := gin.New()
	router.Use(gin.Recovery())
	routes.Setup(router, cfg, sessionCache, m, authHandler, timeLogHandler, healthHandler)

	logger.Info().Str("port", cfg.Port).Msg("starting timetrack api")
	if err := router.Run(fmt.Sprintf(":%s", cfg.Port)); err != nil {
		logger.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}
