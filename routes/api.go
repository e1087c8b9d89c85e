package routes

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/smsbramka/sms-gateway/environments"
	"github.com/smsbramka/sms-gateway/handlers"
	"github.com/smsbramka/sms-gateway/internal/middlewares"
)

// RegisterRoutes registers all API routes with middleware
func RegisterRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	messageHandler *handlers.MessageHandler,
	batchHandler *handlers.BatchHandler,
	templateHandler *handlers.TemplateHandler,
	schedulerHandler *handlers.SchedulerHandler,
	cfg *environments.Config,
) {
	e.GET("/health", healthHandler.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// API v1 base group
	v1 := e.Group("/api/v1")

	// Message routes with their own API key
	messages := v1.Group("/messages", middlewares.APIKeyAuth(cfg.Auth.MessagesAPIKey))

	messages.GET("", messageHandler.GetAllMessages)
	messages.POST("", messageHandler.CreateMessage)
	messages.GET("/stats", messageHandler.GetStats)
	messages.GET("/cached", messageHandler.GetCachedMessages)
	messages.POST("/replay", messageHandler.ReplayAllFailedMessages)
	messages.GET("/:id", messageHandler.GetMessage)
	messages.PUT("/:id", messageHandler.UpdateMessage)
	messages.DELETE("/:id", messageHandler.CancelMessage)
	messages.POST("/:id/replay", messageHandler.ReplayFailedMessage)
	messages.POST("/:id/delivered", messageHandler.MarkDelivered)

	// Bulk batches share the messages API key
	batches := v1.Group("/batches", middlewares.APIKeyAuth(cfg.Auth.MessagesAPIKey))

	batches.POST("", batchHandler.CreateBatch)
	batches.GET("/:batchId", batchHandler.GetProgress)
	batches.DELETE("/:batchId", batchHandler.CancelBatch)

	// Templates share the messages API key
	templates := v1.Group("/templates", middlewares.APIKeyAuth(cfg.Auth.MessagesAPIKey))

	templates.GET("", templateHandler.GetAllTemplates)
	templates.POST("", templateHandler.CreateTemplate)
	templates.GET("/:id", templateHandler.GetTemplate)
	templates.PUT("/:id", templateHandler.UpdateTemplate)
	templates.DELETE("/:id", templateHandler.DeleteTemplate)
	templates.POST("/:id/render", templateHandler.RenderTemplate)

	// Scheduler routes with their own API key
	schedulerGroup := v1.Group("/scheduler", middlewares.APIKeyAuth(cfg.Auth.SchedulerAPIKey))

	schedulerGroup.POST("/start", schedulerHandler.StartScheduler)
	schedulerGroup.POST("/stop", schedulerHandler.StopScheduler)
	schedulerGroup.POST("/run", schedulerHandler.RunNow)
	schedulerGroup.GET("/status", schedulerHandler.GetSchedulerStatus)
}
