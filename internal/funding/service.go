// Package funding processes payment-provider callbacks that top up
// wallets. Replay safety comes from the ledger's idempotency key, not
// from trusting the provider to call exactly once.
package funding

import (
	"context"
	"fmt"
	"time"

	"github.com/creatorpay/creatorpay/internal/ledger"
	"github.com/creatorpay/creatorpay/internal/notification"
)

// Service applies verified gateway notifications to the ledger.
type Service struct {
	ledger   ledger.Ledger
	gateway  Gateway
	notifier notification.Notifier
}

// NewService builds a funding service.
func NewService(ledgerBackend ledger.Ledger, gateway Gateway, notifier notification.Notifier) (*Service, error) {
	if ledgerBackend == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if gateway == nil {
		gateway = StaticGateway{}
	}
	return &Service{ledger: ledgerBackend, gateway: gateway, notifier: notifier}, nil
}

// ErrNotVerified indicates the gateway rejected the callback.
var ErrNotVerified = fmt.Errorf("payment notification failed verification")

// TopUpOutcome reports what the ledger did with the callback.
type TopUpOutcome struct {
	Duplicate   bool
	Transaction ledger.Transaction
	CompletedAt time.Time
}

// TopUp verifies a provider notification and credits the owner's wallet
// exactly once per provider reference.
func (s *Service) TopUp(ctx context.Context, n Notification) (TopUpOutcome, error) {
	if n.Reference == "" {
		return TopUpOutcome{}, fmt.Errorf("provider reference is required")
	}

	minor, err := ledger.ParseAmount(n.Amount)
	if err != nil {
		return TopUpOutcome{}, err
	}

	decision, err := s.gateway.VerifyNotification(ctx, n)
	if err != nil {
		return TopUpOutcome{}, fmt.Errorf("verify notification: %w", err)
	}
	if !decision.Verified {
		return TopUpOutcome{}, ErrNotVerified
	}

	res, err := s.ledger.TopUp(ctx, n.OwnerID, minor, n.Reference, ledger.TopUpMeta{
		Provider:  n.Provider,
		Reference: n.Reference,
	})
	if err != nil {
		return TopUpOutcome{}, err
	}

	if !res.Duplicate && s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTopUp,
			Destination: n.OwnerID,
			Body:        fmt.Sprintf("Your wallet was topped up with %s via %s", ledger.DisplayAmount(res.Transaction.Amount), n.Provider),
		})
	}

	return TopUpOutcome{
		Duplicate:   res.Duplicate,
		Transaction: res.Transaction,
		CompletedAt: time.Now().UTC(),
	}, nil
}
