package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creatorpay/creatorpay/internal/history"
)

// RegisterHistoryRoutes wires the enriched transaction history endpoint.
func RegisterHistoryRoutes(r fiber.Router, h *history.Handler) {
	r.Get("/accounts/:ownerId/history", h.List)
}
