package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creatorpay/creatorpay/internal/account"
)

// RegisterAccountRoutes wires account provisioning, snapshot and manual
// adjustment endpoints. Adjustments carry the replay-protection
// middleware since clients retry them.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler, idem fiber.Handler) {
	r.Post("/accounts", h.Create)
	r.Get("/accounts/:ownerId", h.Get)
	r.Post("/accounts/:accountId/credit", idem, h.Credit)
	r.Post("/accounts/:accountId/debit", idem, h.Debit)
}
