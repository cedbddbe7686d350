// Package purchases drives the purchase lifecycle over the ledger:
// funds are earmarked when a purchase starts, then settled when the
// content is delivered or refunded when it is not.
package purchases

import (
	"context"
	"fmt"

	"github.com/creatorpay/creatorpay/internal/ledger"
	"github.com/creatorpay/creatorpay/internal/notification"
)

// Service coordinates reservations against the ledger engine.
type Service struct {
	ledger   ledger.Ledger
	notifier notification.Notifier
}

// NewService constructs a purchase service.
func NewService(ledgerBackend ledger.Ledger, notifier notification.Notifier) *Service {
	return &Service{ledger: ledgerBackend, notifier: notifier}
}

// ReserveInput captures the data needed to earmark funds for a
// purchase. Amount is a decimal string as supplied at the boundary.
type ReserveInput struct {
	AccountID       string
	Amount          string
	ItemRef         string
	CounterpartyRef string
}

// Reserve earmarks funds for a purchase: the amount leaves the
// spendable balance but is not yet recognized as spent.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) (ledger.Transaction, error) {
	if input.ItemRef == "" {
		return ledger.Transaction{}, fmt.Errorf("item reference is required")
	}
	minor, err := ledger.ParseAmount(input.Amount)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return s.ledger.Reserve(ctx, input.AccountID, minor, ledger.PurchaseMeta{
		ItemRef:         input.ItemRef,
		CounterpartyRef: input.CounterpartyRef,
	})
}

// Commit finalizes a pending purchase: the reserved amount is
// recognized as spent and the settlement trail is written.
func (s *Service) Commit(ctx context.Context, reservationID string) (ledger.Transaction, error) {
	settled, err := s.ledger.CommitReservation(ctx, reservationID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.notify(ctx, settled, notification.KindPurchaseSettled)
	return settled, nil
}

// Release refunds a pending purchase back to the spendable balance.
func (s *Service) Release(ctx context.Context, reservationID string) (ledger.Transaction, error) {
	released, err := s.ledger.ReleaseReservation(ctx, reservationID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.notify(ctx, released, notification.KindPurchaseRefunded)
	return released, nil
}

func (s *Service) notify(ctx context.Context, tx ledger.Transaction, kind string) {
	if s.notifier == nil {
		return
	}
	dest := ""
	if meta, ok := tx.Meta.(ledger.PurchaseMeta); ok {
		dest = meta.CounterpartyRef
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: dest,
		Body:        fmt.Sprintf("Purchase of %s settled as %s", ledger.DisplayAmount(tx.Amount), tx.Type),
	})
}
