// Package history is the read side of the ledger: it lists an account's
// completed transactions and enriches them with display metadata from
// the identity directory and content catalog. It performs no balance
// mutation and makes no balance decisions.
package history

import (
	"context"
	"time"

	"github.com/creatorpay/creatorpay/internal/catalog"
	"github.com/creatorpay/creatorpay/internal/identity"
	"github.com/creatorpay/creatorpay/internal/ledger"
)

const maxPageSize = 100

// Entry is one history line with amounts converted to display units and
// meta references resolved to display objects.
type Entry struct {
	TransactionID string            `json:"transaction_id"`
	Type          string            `json:"type"`
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	BalanceAfter  string            `json:"balance_after"`
	CreatedAt     time.Time         `json:"created_at"`
	Counterparty  *identity.Profile `json:"counterparty,omitempty"`
	Item          *catalog.Item     `json:"item,omitempty"`
	TopUp         *TopUpInfo        `json:"top_up,omitempty"`
	Adjustment    *AdjustmentInfo   `json:"adjustment,omitempty"`
}

// TopUpInfo is the display form of a top-up meta reference.
type TopUpInfo struct {
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
}

// AdjustmentInfo is the display form of a manual adjustment reference.
type AdjustmentInfo struct {
	Reason string `json:"reason"`
}

// Service assembles enriched history pages.
type Service struct {
	ledger    ledger.Ledger
	directory identity.Directory
	catalog   catalog.Catalog
}

// NewService builds a history service.
func NewService(l ledger.Ledger, directory identity.Directory, cat catalog.Catalog) *Service {
	return &Service{ledger: l, directory: directory, catalog: cat}
}

// ForOwner returns up to limit most-recent completed CREDIT/DEBIT
// transactions for the owner's account, most recent first. External
// lookups are batched, one call per collaborator per page.
func (s *Service) ForOwner(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	acc, err := s.ledger.GetAccount(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	txs, err := s.ledger.Transactions(ctx, acc.ID, ledger.Query{
		Types:    []ledger.Type{ledger.TypeCredit, ledger.TypeDebit},
		Statuses: []ledger.Status{ledger.StatusCompleted},
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	var ownerRefs, itemRefs []string
	for _, tx := range txs {
		if meta, ok := tx.Meta.(ledger.PurchaseMeta); ok {
			if meta.CounterpartyRef != "" {
				ownerRefs = append(ownerRefs, meta.CounterpartyRef)
			}
			if meta.ItemRef != "" {
				itemRefs = append(itemRefs, meta.ItemRef)
			}
		}
	}

	profiles := map[string]identity.Profile{}
	if len(ownerRefs) > 0 && s.directory != nil {
		if profiles, err = s.directory.Lookup(ctx, ownerRefs); err != nil {
			return nil, err
		}
	}
	items := map[string]catalog.Item{}
	if len(itemRefs) > 0 && s.catalog != nil {
		if items, err = s.catalog.Lookup(ctx, itemRefs); err != nil {
			return nil, err
		}
	}

	entries := make([]Entry, 0, len(txs))
	for _, tx := range txs {
		entry := Entry{
			TransactionID: tx.ID,
			Type:          string(tx.Type),
			Amount:        ledger.DisplayAmount(tx.Amount),
			Currency:      tx.Currency,
			BalanceAfter:  ledger.DisplayAmount(tx.BalanceAfter),
			CreatedAt:     tx.CreatedAt,
		}
		switch meta := tx.Meta.(type) {
		case ledger.PurchaseMeta:
			if p, ok := profiles[meta.CounterpartyRef]; ok {
				profile := p
				entry.Counterparty = &profile
			}
			if it, ok := items[meta.ItemRef]; ok {
				item := it
				entry.Item = &item
			}
		case ledger.TopUpMeta:
			entry.TopUp = &TopUpInfo{Provider: meta.Provider, Reference: meta.Reference}
		case ledger.AdjustmentMeta:
			entry.Adjustment = &AdjustmentInfo{Reason: meta.Reason}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
