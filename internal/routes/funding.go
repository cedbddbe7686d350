package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/creatorpay/creatorpay/internal/funding"
)

// RegisterFundingRoutes wires the payment-provider webhook. Providers
// do not send Idempotency-Key headers, so replay safety comes from the
// ledger's own idempotency key; the rate limiter only caps callback
// volume per provider.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, limiter fiber.Handler) {
	r.Post("/webhooks/payment", limiter, h.Webhook)
}
