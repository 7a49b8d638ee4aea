package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/paralex-app/backend/internal/billing"
	"github.com/paralex-app/backend/internal/config"
	"github.com/paralex-app/backend/internal/dto"
)

type WebhookHandler struct {
	billing *billing.Service
	cfg     *config.Config
}

func NewWebhookHandler(billingService *billing.Service, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{billing: billingService, cfg: cfg}
}

// HandlePolar receives billing events from Polar. The signature is checked
// against the raw body before anything is parsed; an unverifiable delivery is
// rejected without touching the store.
func (h *WebhookHandler) HandlePolar(c *fiber.Ctx) error {
	payload := c.Body()

	if h.cfg.PolarWebhookSecret == "" {
		if h.cfg.IsProduction() {
			slog.Error("polar webhook received but no secret configured")
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}
		slog.Warn("polar webhook signature check skipped, no secret configured")
	} else if !billing.VerifySignature(payload, c.Get("Polar-Signature"), h.cfg.PolarWebhookSecret) {
		slog.Warn("polar webhook rejected, signature mismatch", "ip", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid signature",
		})
	}

	outcome, err := h.billing.Process(payload, h.cfg.PolarWebhookSecret != "")
	if err != nil {
		if errors.Is(err, billing.ErrMalformedPayload) {
			slog.Warn("polar webhook payload unreadable", "error", err)
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid webhook payload",
			})
		}
		slog.Error("polar webhook processing failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process webhook event",
		})
	}

	slog.Info("polar webhook handled",
		"event_id", outcome.EventID,
		"event_type", outcome.EventType,
		"outcome", outcome.Status,
	)
	return c.JSON(fiber.Map{"received": true})
}
