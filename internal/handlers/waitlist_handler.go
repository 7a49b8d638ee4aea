package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/paralex-app/backend/internal/dto"
	"github.com/paralex-app/backend/internal/services"
)

type WaitlistHandler struct {
	waitlistService *services.WaitlistService
}

func NewWaitlistHandler(waitlistService *services.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlistService: waitlistService}
}

// Join is open to unauthenticated visitors; duplicate signups get the same
// response as new ones.
func (h *WaitlistHandler) Join(c *fiber.Ctx) error {
	var req dto.WaitlistRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if _, err := h.waitlistService.Join(&req); err != nil {
		if errors.Is(err, services.ErrInvalidEmail) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to join waitlist",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "You're on the list"})
}

func (h *WaitlistHandler) Count(c *fiber.Ctx) error {
	count, err := h.waitlistService.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to count waitlist",
		})
	}
	return c.JSON(fiber.Map{"count": count})
}
