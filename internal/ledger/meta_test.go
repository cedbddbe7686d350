package ledger

import "testing"

func TestMetaRoundTrip(t *testing.T) {
	variants := []Meta{
		TopUpMeta{Provider: "stripe", Reference: "evt_123"},
		PurchaseMeta{ItemRef: "video-42", CounterpartyRef: "creator-9"},
		AdjustmentMeta{Reason: "chargeback", ActorRef: "ops"},
	}

	for _, m := range variants {
		data, err := EncodeMeta(m)
		if err != nil {
			t.Fatalf("encode %T: %v", m, err)
		}
		back, err := DecodeMeta(data)
		if err != nil {
			t.Fatalf("decode %T: %v", m, err)
		}
		if back != m {
			t.Fatalf("round trip changed meta: %+v != %+v", back, m)
		}
	}
}

func TestMetaNil(t *testing.T) {
	data, err := EncodeMeta(nil)
	if err != nil || data != nil {
		t.Fatalf("encode nil: data=%v err=%v", data, err)
	}
	back, err := DecodeMeta(nil)
	if err != nil || back != nil {
		t.Fatalf("decode nil: meta=%v err=%v", back, err)
	}
}
