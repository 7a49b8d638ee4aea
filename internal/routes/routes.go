package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/paralex-app/backend/internal/config"
	"github.com/paralex-app/backend/internal/handlers"
	"github.com/paralex-app/backend/internal/middleware"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	webhookHandler *handlers.WebhookHandler,
	chatHandler *handlers.ChatHandler,
	waitlistHandler *handlers.WaitlistHandler,
	plansHandler *handlers.PlansHandler,
	legalHandler *handlers.LegalHandler,
	configHandler *handlers.RemoteConfigHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Public surface
	api.Get("/config", configHandler.GetConfig)
	api.Get("/plans", plansHandler.List)
	api.Post("/waitlist", waitlistHandler.Join)
	api.Get("/legal/privacy", legalHandler.PrivacyPolicy)
	api.Get("/legal/terms", legalHandler.TermsOfService)

	// Auth — stricter rate limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	// Protected routes (JWT required) - apply middleware per route so public
	// routes stay unaffected
	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)
	api.Delete("/auth/account", middleware.JWTProtected(cfg), authHandler.DeleteAccount)

	api.Get("/me", middleware.JWTProtected(cfg), chatHandler.Me)
	api.Post("/chat", middleware.JWTProtected(cfg), chatHandler.SendMessage)
	api.Post("/analyze", middleware.JWTProtected(cfg), chatHandler.AnalyzeDocument)
	api.Get("/conversations", middleware.JWTProtected(cfg), chatHandler.ListConversations)
	api.Get("/conversations/:id", middleware.JWTProtected(cfg), chatHandler.GetConversation)

	// Admin panel (protected + admin required)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Get("/waitlist/count", waitlistHandler.Count)
	admin.Put("/config/:key", configHandler.SetConfigKey)
	admin.Delete("/config/:key", configHandler.DeleteConfigKey)

	// Webhooks — signature auth, no JWT
	webhooks := api.Group("/webhooks")
	webhooks.Post("/polar", webhookHandler.HandlePolar)
}
