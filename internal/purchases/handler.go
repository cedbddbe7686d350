package purchases

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorpay/creatorpay/internal/ledger"
)

// Handler exposes purchase lifecycle endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a purchase handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type reserveRequest struct {
	AccountID       string `json:"account_id"`
	Amount          string `json:"amount"`
	ItemRef         string `json:"item_ref"`
	CounterpartyRef string `json:"counterparty_ref"`
}

type reservationResponse struct {
	ReservationID string `json:"reservation_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	BalanceAfter  int64  `json:"balance_after"`
}

func toResponse(tx ledger.Transaction) reservationResponse {
	return reservationResponse{
		ReservationID: tx.ID,
		Type:          string(tx.Type),
		Status:        string(tx.Status),
		Amount:        tx.Amount,
		BalanceAfter:  tx.BalanceAfter,
	}
}

// Reserve earmarks funds for a purchase.
func (h *Handler) Reserve(c *fiber.Ctx) error {
	var req reserveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Reserve(c.UserContext(), ReserveInput{
		AccountID:       req.AccountID,
		Amount:          req.Amount,
		ItemRef:         req.ItemRef,
		CounterpartyRef: req.CounterpartyRef,
	})
	if err != nil {
		return purchaseError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(tx))
}

// Commit finalizes a pending purchase.
func (h *Handler) Commit(c *fiber.Ctx) error {
	tx, err := h.service.Commit(c.UserContext(), c.Params("reservationId"))
	if err != nil {
		return purchaseError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(tx))
}

// Release refunds a pending purchase.
func (h *Handler) Release(c *fiber.Ctx) error {
	tx, err := h.service.Release(c.UserContext(), c.Params("reservationId"))
	if err != nil {
		return purchaseError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(tx))
}

func purchaseError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account or reservation not found")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be a positive decimal")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ledger.ErrInvalidState):
		return fiber.NewError(http.StatusConflict, "reservation is no longer pending")
	case errors.Is(err, ledger.ErrConflict):
		return fiber.NewError(http.StatusConflict, "account busy, retry")
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
