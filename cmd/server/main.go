package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/paralex-app/backend/internal/billing"
	"github.com/paralex-app/backend/internal/config"
	"github.com/paralex-app/backend/internal/database"
	"github.com/paralex-app/backend/internal/handlers"
	"github.com/paralex-app/backend/internal/logging"
	"github.com/paralex-app/backend/internal/middleware"
	"github.com/paralex-app/backend/internal/plans"
	"github.com/paralex-app/backend/internal/routes"
	"github.com/paralex-app/backend/internal/services"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.IsProduction() && cfg.PolarWebhookSecret == "" {
		slog.Error("POLAR_WEBHOOK_SECRET is required in production")
		os.Exit(1)
	}

	// Plan catalog
	catalog, err := plans.LoadFromFile(cfg.PlansConfigPath)
	if err != nil {
		slog.Error("failed to load plan catalog", "path", cfg.PlansConfigPath, "error", err)
		os.Exit(1)
	}
	slog.Info("plan catalog loaded", "plans", len(catalog.All()))

	// Env override for the free-tier chat quota
	if cfg.FreeDailyMessageLimit > 0 {
		if free := catalog.Get("free"); free != nil {
			free.DailyMessageLimit = cfg.FreeDailyMessageLimit
		}
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Services
	authService := services.NewAuthService(database.DB, cfg)
	billingService := billing.NewServiceFromDB(database.DB)
	modelClient := services.NewModelClient(cfg.AIBaseURL, cfg.AIModel, cfg.AIAPIKeys, cfg.AITimeout)
	chatService := services.NewChatService(database.DB, modelClient, catalog)
	waitlistService := services.NewWaitlistService(database.DB)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	healthHandler := handlers.NewHealthHandler()
	webhookHandler := handlers.NewWebhookHandler(billingService, cfg)
	chatHandler := handlers.NewChatHandler(chatService)
	waitlistHandler := handlers.NewWaitlistHandler(waitlistService)
	plansHandler := handlers.NewPlansHandler(catalog)
	legalHandler := handlers.NewLegalHandler()
	configHandler := handlers.NewRemoteConfigHandler(database.DB)

	// Seed default remote config values
	slog.Info("seeding remote config defaults")
	if err := configHandler.SeedDefaults(); err != nil {
		slog.Error("remote config seeding failed", "error", err)
	}

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, database.DB,
		authHandler, healthHandler, webhookHandler, chatHandler,
		waitlistHandler, plansHandler, legalHandler, configHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
