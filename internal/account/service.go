// Package account exposes wallet provisioning, snapshots and manual
// balance adjustments over the ledger engine.
package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/creatorpay/creatorpay/internal/ledger"
)

const defaultCurrency = "USD"

// Service is a thin layer over the ledger engine: it validates input at
// the boundary and leaves every balance decision to the engine.
type Service struct {
	ledger ledger.Ledger
}

// NewService builds an account service instance.
func NewService(l ledger.Ledger) *Service {
	return &Service{ledger: l}
}

// CreateInput captures data required to provision an account.
type CreateInput struct {
	OwnerID  string
	Currency string
}

// Create provisions the single account for an owner. Duplicate creation
// fails and never overwrites the existing account.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Account, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return ledger.Account{}, fmt.Errorf("owner id must be a UUID: %w", err)
	}
	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return s.ledger.CreateAccount(ctx, input.OwnerID, currency)
}

// Get returns a consistent snapshot of the owner's balances.
func (s *Service) Get(ctx context.Context, ownerID string) (ledger.Account, error) {
	return s.ledger.GetAccount(ctx, ownerID)
}

// AdjustInput captures a manual credit or debit. Amount is a decimal
// string as supplied at the boundary; it is parsed to minor units once.
type AdjustInput struct {
	AccountID string
	Amount    string
	Reason    string
	ActorRef  string
}

// Credit applies a manual credit (creator earnings, promo bonus).
func (s *Service) Credit(ctx context.Context, input AdjustInput) (ledger.Transaction, error) {
	minor, err := ledger.ParseAmount(input.Amount)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return s.ledger.Credit(ctx, input.AccountID, minor, ledger.AdjustmentMeta{Reason: input.Reason, ActorRef: input.ActorRef})
}

// Debit applies a manual debit (payout, correction).
func (s *Service) Debit(ctx context.Context, input AdjustInput) (ledger.Transaction, error) {
	minor, err := ledger.ParseAmount(input.Amount)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return s.ledger.Debit(ctx, input.AccountID, minor, ledger.AdjustmentMeta{Reason: input.Reason, ActorRef: input.ActorRef})
}
