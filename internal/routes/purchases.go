package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creatorpay/creatorpay/internal/purchases"
)

// RegisterPurchaseRoutes wires the purchase lifecycle endpoints.
func RegisterPurchaseRoutes(r fiber.Router, h *purchases.Handler, idem fiber.Handler) {
	r.Post("/purchases", idem, h.Reserve)
	r.Post("/purchases/:reservationId/commit", idem, h.Commit)
	r.Post("/purchases/:reservationId/release", idem, h.Release)
}
