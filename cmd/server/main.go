package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/barswebadmin/leagueops/internal/api"
	"github.com/barswebadmin/leagueops/internal/api/middleware"
	"github.com/barswebadmin/leagueops/internal/chat"
	"github.com/barswebadmin/leagueops/internal/config"
	"github.com/barswebadmin/leagueops/internal/mailer"
	"github.com/barswebadmin/leagueops/internal/refund"
	"github.com/barswebadmin/leagueops/internal/repository/postgres"
	"github.com/barswebadmin/leagueops/internal/service"
)

// form submissions are resent for at most a day
const idempotencyTTL = 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var zcfg zap.Config
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting league ops server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	// The database is optional: it holds the audit trail, which the workflow never reads,
	// and form submission keys shared across instances
	var (
		audit       refund.AuditLog
		idempotency middleware.IdempotencyStore = middleware.NewMemoryIdempotencyStore(idempotencyTTL, postgres.IdempotencyLease)
	)
	if cfg.Database.Enabled {
		db, err := postgres.NewConnection(context.Background(), cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		repos := postgres.NewRepositories(db, idempotencyTTL, logger)
		audit = repos.WorkflowEvent
		idempotency = repos.IdempotencyKey
		logger.Info("Audit log and shared idempotency keys enabled", zap.String("database", cfg.Database.DBName))
	} else {
		logger.Warn("Database disabled: idempotency keys are kept in memory on this instance only")
	}

	// Gateways
	shopifySvc := service.NewShopifyService(cfg.Shopify, cfg.Gateway.MaxAttempts, logger)
	chatClient := chat.NewClient(slack.New(cfg.Slack.BotToken), cfg.Gateway.MaxAttempts, logger)

	var sender mailer.Sender = mailer.DisabledSender{}
	if smtp, err := mailer.NewSMTPSender(cfg.Mail); err == nil {
		sender = smtp
	} else {
		logger.Warn("Denial emails disabled", zap.Error(err))
	}
	notifier := mailer.New(sender, cfg.Mail, logger)

	// Refund workflow
	codec := refund.NewCodec(refund.Links{
		ShopifyAdminURL: cfg.Shopify.AdminURL,
		ReferenceLink:   cfg.Links.RefundSheetURL,
		WaitlistFormURL: cfg.Links.WaitlistFormURL,
	})
	engine := refund.NewEngine(shopifySvc, chatClient, notifier, audit, codec, cfg.Slack.RefundsChannelID, logger)
	waitlist := service.NewWaitlistNotifier(shopifySvc, chatClient, cfg.Slack.WaitlistChannelID,
		cfg.Shopify.AdminURL, cfg.Links.WaitlistFormURL, logger)

	// Initialize router
	router := api.NewRouter(cfg, api.Services{
		Interactions: refund.NewRouter(engine, logger),
		Requests:     engine,
		Inventory:    waitlist,
		Idempotency:  idempotency,
	}, logger)

	// Create HTTP server; Slack interactions run the whole transition inline
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
