package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorpay/creatorpay/internal/ledger"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID  string `json:"owner_id"`
	Currency string `json:"currency"`
}

type accountResponse struct {
	ID              string `json:"id"`
	OwnerID         string `json:"owner_id"`
	Balance         int64  `json:"balance"`
	ReservedBalance int64  `json:"reserved_balance"`
	Currency        string `json:"currency"`
	Active          bool   `json:"active"`
}

type adjustRequest struct {
	Amount   string `json:"amount"`
	Reason   string `json:"reason"`
	ActorRef string `json:"actor_ref"`
}

type transactionResponse struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
}

func toAccountResponse(acc ledger.Account) accountResponse {
	return accountResponse{
		ID:              acc.ID,
		OwnerID:         acc.OwnerID,
		Balance:         acc.Balance,
		ReservedBalance: acc.ReservedBalance,
		Currency:        acc.Currency,
		Active:          acc.Active,
	}
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:            tx.ID,
		AccountID:     tx.AccountID,
		Type:          string(tx.Type),
		Status:        string(tx.Status),
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		BalanceBefore: tx.BalanceBefore,
		BalanceAfter:  tx.BalanceAfter,
	}
}

// Create provisions an account for an owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acc, err := h.service.Create(c.UserContext(), CreateInput{OwnerID: req.OwnerID, Currency: req.Currency})
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyExists) {
			return fiber.NewError(http.StatusConflict, "account already exists for owner")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toAccountResponse(acc))
}

// Get returns the owner's balance snapshot.
func (h *Handler) Get(c *fiber.Ctx) error {
	acc, err := h.service.Get(c.UserContext(), c.Params("ownerId"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(acc))
}

// Credit applies a manual credit to an account.
func (h *Handler) Credit(c *fiber.Ctx) error {
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Credit(c.UserContext(), AdjustInput{
		AccountID: c.Params("accountId"),
		Amount:    req.Amount,
		Reason:    req.Reason,
		ActorRef:  req.ActorRef,
	})
	if err != nil {
		return adjustError(err)
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

// Debit applies a manual debit to an account.
func (h *Handler) Debit(c *fiber.Ctx) error {
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Debit(c.UserContext(), AdjustInput{
		AccountID: c.Params("accountId"),
		Amount:    req.Amount,
		Reason:    req.Reason,
		ActorRef:  req.ActorRef,
	})
	if err != nil {
		return adjustError(err)
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

func adjustError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be a positive decimal")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ledger.ErrConflict):
		return fiber.NewError(http.StatusConflict, "account busy, retry")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
