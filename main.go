package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/smsbramka/sms-gateway/environments"
	"github.com/smsbramka/sms-gateway/handlers"
	"github.com/smsbramka/sms-gateway/internal/repository"
	"github.com/smsbramka/sms-gateway/internal/scheduler"
	"github.com/smsbramka/sms-gateway/internal/service"
	"github.com/smsbramka/sms-gateway/pkg/database"
	"github.com/smsbramka/sms-gateway/pkg/gateway"
	"github.com/smsbramka/sms-gateway/pkg/logger"
	"github.com/smsbramka/sms-gateway/pkg/redis"
	syncclient "github.com/smsbramka/sms-gateway/pkg/sync"
	"github.com/smsbramka/sms-gateway/pkg/validator"
	"github.com/smsbramka/sms-gateway/routes"

	_ "github.com/smsbramka/sms-gateway/docs" // swagger docs
)

// @title SMS Gateway API
// @version 1.0
// @description Scheduled and bulk SMS dispatch service

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @schemes http https
func main() {
	logger.Init()

	// Load config
	cfg := environments.Load()

	// Hard-fail if required secrets are missing
	if cfg.Gateway.AuthKey == "" {
		logger.Fatalf("GATEWAY_AUTH_KEY is required but not set")
	}
	if cfg.Auth.MessagesAPIKey == "" {
		logger.Fatalf("MESSAGES_API_KEY is required but not set")
	}
	if cfg.Auth.SchedulerAPIKey == "" {
		logger.Fatalf("SCHEDULER_API_KEY is required but not set")
	}

	logger.Infof("Starting SMS Gateway...")

	// Init DB
	db, err := database.NewMySQLDB(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed data
	if os.Getenv("SEED_DATA") == "true" {
		if err := database.SeedTestData(db); err != nil {
			logger.Warnf("Failed to seed test data: %v", err)
		}
	}

	// Init redis
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		logger.Warnf("Redis not available, caching disabled: %v", err)
		redisClient = nil
	}

	// Provider client
	gatewayClient := gateway.NewClient(cfg.Gateway)
	logger.Infof("SMS provider configured: %s", gatewayClient.URL())

	// Optional remote backend sync. The nil checks keep typed nils out of
	// the service's optional interfaces.
	var syncBackend service.SyncBackend
	if cfg.Sync.BaseURL != "" {
		syncBackend = syncclient.NewClient(cfg.Sync)
		logger.Infof("Remote sync configured: %s", cfg.Sync.BaseURL)
	}

	var cache service.Cache
	if redisClient != nil {
		cache = redisClient
	}

	// Repositories
	messageRepo := repository.NewMessageRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	// Services
	dispatchService := service.NewDispatchService(messageRepo, gatewayClient, syncBackend, cache, cfg.Message)
	bulkService := service.NewBulkService(messageRepo, gatewayClient, cache, cfg.Bulk, cfg.Message)
	templateService := service.NewTemplateService(templateRepo)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize scheduler
	sched := scheduler.NewScheduler(dispatchService, cfg.Scheduler.Interval)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisClient)
	messageHandler := handlers.NewMessageHandler(dispatchService)
	batchHandler := handlers.NewBatchHandler(bulkService)
	templateHandler := handlers.NewTemplateHandler(templateService)
	schedulerHandler := handlers.NewSchedulerHandler(sched, ctx, cfg)

	// Auto-start scheduler with the configured alerting, so the default
	// deployment can flag repeated all-fail passes without a manual restart.
	if os.Getenv("AUTO_START_SCHEDULER") != "false" {
		logger.Infof("Auto-starting scheduler...")
		if err := sched.StartWithParams(
			ctx,
			int(cfg.Scheduler.Interval.Minutes()),
			cfg.Alert.WebhookURL,
			cfg.Alert.IterationCount,
		); err != nil {
			logger.Warnf("Failed to auto-start scheduler: %v", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validator.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"x-sms-auth-key",
		},
	}))

	// Setup routes
	routes.RegisterRoutes(e, healthHandler, messageHandler, batchHandler, templateHandler, schedulerHandler, cfg)

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Infof("Server starting on http://localhost%s", addr)
		logger.Infof("Swagger docs available at http://localhost%s/swagger/index.html", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("Shutting down gracefully...")

	// Cancel context to signal all goroutines to stop
	cancel()

	// Stop scheduler first (with timeout)
	if sched.IsRunning() {
		logger.Infof("Stopping scheduler...")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()

		done := make(chan error, 1)
		go func() {
			done <- sched.Stop()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Errorf("Error stopping scheduler: %v", err)
			} else {
				logger.Infof("Scheduler stopped successfully")
			}
		case <-stopCtx.Done():
			logger.Warnf("Scheduler stop timeout, forcing shutdown")
		}
	}

	// Shutdown HTTP server (with timeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Infof("Shutting down HTTP server...")
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	} else {
		logger.Infof("HTTP server stopped successfully")
	}

	// Close database connection
	logger.Infof("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Errorf("Error closing database: %v", err)
	}

	// Close Redis connection
	if redisClient != nil {
		logger.Infof("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			logger.Errorf("Error closing Redis: %v", err)
		}
	}

	logger.Infof("Graceful shutdown completed")
}
