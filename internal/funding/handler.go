package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorpay/creatorpay/internal/ledger"
)

// Handler exposes the payment webhook endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Webhook processes a provider top-up callback. Replays return the
// original outcome with status "duplicate" and a 200, so providers stop
// retrying.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	var req WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	outcome, err := h.service.TopUp(c.UserContext(), Notification{
		Provider:  req.Provider,
		Reference: req.Reference,
		OwnerID:   req.OwnerID,
		Amount:    req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "account not found for owner")
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, "amount must be a positive decimal")
		case errors.Is(err, ledger.ErrConflict):
			return fiber.NewError(http.StatusConflict, "top-up with this reference is in flight")
		case errors.Is(err, ErrNotVerified):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	status := "success"
	code := http.StatusCreated
	if outcome.Duplicate {
		status = "duplicate"
		code = http.StatusOK
	}
	return c.Status(code).JSON(WebhookResponse{
		Status:        status,
		TransactionID: outcome.Transaction.ID,
		Balance:       outcome.Transaction.BalanceAfter,
	})
}
