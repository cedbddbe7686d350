package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorpay/creatorpay/internal/ledger"
)

// Handler exposes the history endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a history HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List returns the owner's enriched transaction history.
func (h *Handler) List(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = parsed
	}

	entries, err := h.service.ForOwner(c.UserContext(), c.Params("ownerId"), limit)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner_id": c.Params("ownerId"),
		"entries":  entries,
	})
}
