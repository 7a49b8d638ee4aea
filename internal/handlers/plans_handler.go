package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paralex-app/backend/internal/plans"
)

type PlansHandler struct {
	catalog *plans.Registry
}

func NewPlansHandler(catalog *plans.Registry) *PlansHandler {
	return &PlansHandler{catalog: catalog}
}

// List returns the plan catalog the pricing page renders.
func (h *PlansHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": h.catalog.All()})
}
