package ledger

import (
	"encoding/json"
	"fmt"
)

// MetaKind discriminates the business event behind a transaction.
type MetaKind string

const (
	MetaKindTopUp      MetaKind = "top_up"
	MetaKindPurchase   MetaKind = "purchase"
	MetaKindAdjustment MetaKind = "adjustment"
)

// Meta is the typed reference to the originating business event stored
// on a transaction. Variants are validated at the boundary and carried
// verbatim through commit/release so the settlement trail stays linked
// to the original event.
type Meta interface {
	Kind() MetaKind
}

// TopUpMeta references an external payment gateway event.
type TopUpMeta struct {
	Provider  string
	Reference string
}

func (TopUpMeta) Kind() MetaKind { return MetaKindTopUp }

// PurchaseMeta references a purchasable catalog item and the creator
// being paid.
type PurchaseMeta struct {
	ItemRef         string
	CounterpartyRef string
}

func (PurchaseMeta) Kind() MetaKind { return MetaKindPurchase }

// AdjustmentMeta references a manual credit or debit applied by an
// operator or platform job.
type AdjustmentMeta struct {
	Reason   string
	ActorRef string
}

func (AdjustmentMeta) Kind() MetaKind { return MetaKindAdjustment }

// metaRecord is the flat JSON envelope used to persist Meta.
type metaRecord struct {
	Kind            MetaKind `json:"kind"`
	Provider        string   `json:"provider,omitempty"`
	Reference       string   `json:"reference,omitempty"`
	ItemRef         string   `json:"item_ref,omitempty"`
	CounterpartyRef string   `json:"counterparty_ref,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	ActorRef        string   `json:"actor_ref,omitempty"`
}

// EncodeMeta serializes a Meta variant for storage. A nil meta encodes
// as nil.
func EncodeMeta(m Meta) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	rec := metaRecord{Kind: m.Kind()}
	switch v := m.(type) {
	case TopUpMeta:
		rec.Provider = v.Provider
		rec.Reference = v.Reference
	case PurchaseMeta:
		rec.ItemRef = v.ItemRef
		rec.CounterpartyRef = v.CounterpartyRef
	case AdjustmentMeta:
		rec.Reason = v.Reason
		rec.ActorRef = v.ActorRef
	default:
		return nil, fmt.Errorf("unknown meta kind %q", m.Kind())
	}
	return json.Marshal(rec)
}

// DecodeMeta restores a Meta variant from its stored form.
func DecodeMeta(data []byte) (Meta, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rec metaRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	switch rec.Kind {
	case MetaKindTopUp:
		return TopUpMeta{Provider: rec.Provider, Reference: rec.Reference}, nil
	case MetaKindPurchase:
		return PurchaseMeta{ItemRef: rec.ItemRef, CounterpartyRef: rec.CounterpartyRef}, nil
	case MetaKindAdjustment:
		return AdjustmentMeta{Reason: rec.Reason, ActorRef: rec.ActorRef}, nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown meta kind %q", rec.Kind)
	}
}
