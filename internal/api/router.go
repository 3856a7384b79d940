package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/barswebadmin/leagueops/internal/api/handlers"
	"github.com/barswebadmin/leagueops/internal/api/middleware"
	"github.com/barswebadmin/leagueops/internal/config"
)

// Services are the workflow components the HTTP layer hands requests to
type Services struct {
	Interactions handlers.InteractionRouter
	Requests     handlers.RequestCreator
	Inventory    handlers.InventoryUpdateHandler
	Idempotency  middleware.IdempotencyStore
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, svc Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if svc.Idempotency == nil {
		svc.Idempotency = middleware.NewMemoryIdempotencyStore(24*time.Hour, 2*time.Minute)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "League Ops",
			"endpoints": []string{
				"GET /health",
				"POST /slack/interactions",
				"POST /webhooks/refund-requests",
				"POST /webhooks/shopify/inventory",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Slack: button clicks and modal submissions on refund request messages
	router.POST("/slack/interactions", handlers.HandleSlackInteractions(cfg.Slack.SigningSecret, svc.Interactions, logger))

	webhooks := router.Group("/webhooks")
	{
		// Refund form: one request per submission
		webhooks.POST("/refund-requests",
			middleware.FormKeyAuth(cfg.FormWebhookKeyHash, logger),
			middleware.IdempotencyMiddleware(svc.Idempotency, logger),
			handlers.HandleRefundRequestWebhook(svc.Requests, cfg.Shopify.Location(), logger),
		)

		// Shopify inventory_levels/update: waitlist notices
		webhooks.POST("/shopify/inventory", handlers.HandleShopifyInventoryWebhook(cfg.ShopifyWebhookSecret, svc.Inventory, logger))
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
	}
}
