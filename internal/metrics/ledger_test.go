package metrics

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/creatorpay/creatorpay/internal/ledger"
)

func TestInstrumentCountsOperations(t *testing.T) {
	ctx := context.Background()
	collector := NewCollector()
	l := Instrument(ledger.NewInMemory(), collector)

	acc, err := l.CreateAccount(ctx, uuid.NewString(), "USD")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := l.Credit(ctx, acc.ID, 1_000, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := l.Debit(ctx, acc.ID, 5_000, nil); err == nil {
		t.Fatal("expected insufficient funds")
	}

	if got := testutil.ToFloat64(collector.operations.WithLabelValues("credit", "ok")); got != 1 {
		t.Fatalf("expected 1 ok credit, got %v", got)
	}
	if got := testutil.ToFloat64(collector.operations.WithLabelValues("debit", "error")); got != 1 {
		t.Fatalf("expected 1 failed debit, got %v", got)
	}

	if _, err := l.GetAccount(ctx, acc.OwnerID); err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got := testutil.ToFloat64(collector.balances.WithLabelValues(acc.ID, "spendable")); got != 1_000 {
		t.Fatalf("expected spendable gauge 1000, got %v", got)
	}
}
