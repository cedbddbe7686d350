package funding

import (
	"context"

	"github.com/google/uuid"
)

// Gateway represents a connector to an external payment provider whose
// webhooks fund wallets.
type Gateway interface {
	VerifyNotification(ctx context.Context, n Notification) (VerificationDecision, error)
}

// Notification is a payment callback as reported by the provider. The
// provider's own reference doubles as the ledger idempotency key, so a
// replayed webhook is applied at most once.
type Notification struct {
	Provider  string
	Reference string
	OwnerID   string
	Amount    string
}

// VerificationDecision captures the gateway's verdict on a callback.
type VerificationDecision struct {
	Verified  bool
	Reference string
}

// StaticGateway accepts every notification. Used in dev mode and tests
// where no real provider integration is configured.
type StaticGateway struct{}

// VerifyNotification approves the callback with a synthetic reference
// when the provider omitted one.
func (StaticGateway) VerifyNotification(_ context.Context, n Notification) (VerificationDecision, error) {
	ref := n.Reference
	if ref == "" {
		ref = uuid.NewString()
	}
	return VerificationDecision{Verified: true, Reference: ref}, nil
}
