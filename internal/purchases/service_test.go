package purchases

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/creatorpay/creatorpay/internal/ledger"
)

func setupAccount(t *testing.T, l ledger.Ledger, balance int64) ledger.Account {
	t.Helper()
	ctx := context.Background()
	acc, err := l.CreateAccount(ctx, uuid.NewString(), "USD")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	ledger.SeedBalance(l, acc.ID, balance, 0)
	acc, err = l.GetAccount(ctx, acc.OwnerID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acc
}

func TestPurchaseCommitFlow(t *testing.T) {
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory()
	acc := setupAccount(t, ledgerBackend, 10_000)
	service := NewService(ledgerBackend, nil)

	res, err := service.Reserve(ctx, ReserveInput{
		AccountID:       acc.ID,
		Amount:          "25.00",
		ItemRef:         "video-1",
		CounterpartyRef: "creator-1",
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.Type != ledger.TypeReserve || res.Status != ledger.StatusPending {
		t.Fatalf("unexpected reservation record %s/%s", res.Type, res.Status)
	}

	mid, _ := ledgerBackend.GetAccount(ctx, acc.OwnerID)
	if mid.Balance != 7_500 || mid.ReservedBalance != 2_500 {
		t.Fatalf("after reserve: balance=%d reserved=%d", mid.Balance, mid.ReservedBalance)
	}

	settled, err := service.Commit(ctx, res.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if settled.Type != ledger.TypeDebit {
		t.Fatalf("expected settlement debit, got %s", settled.Type)
	}

	after, _ := ledgerBackend.GetAccount(ctx, acc.OwnerID)
	if after.Balance != 7_500 || after.ReservedBalance != 0 {
		t.Fatalf("after commit: balance=%d reserved=%d", after.Balance, after.ReservedBalance)
	}

	if _, err := service.Release(ctx, res.ID); !errors.Is(err, ledger.ErrInvalidState) {
		t.Fatalf("release after commit: expected ErrInvalidState, got %v", err)
	}
}

func TestPurchaseReleaseFlow(t *testing.T) {
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory()
	acc := setupAccount(t, ledgerBackend, 10_000)
	service := NewService(ledgerBackend, nil)

	res, err := service.Reserve(ctx, ReserveInput{
		AccountID: acc.ID,
		Amount:    "25.00",
		ItemRef:   "video-1",
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if _, err := service.Release(ctx, res.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	after, _ := ledgerBackend.GetAccount(ctx, acc.OwnerID)
	if after.Balance != 10_000 || after.ReservedBalance != 0 {
		t.Fatalf("release did not refund: balance=%d reserved=%d", after.Balance, after.ReservedBalance)
	}
}

func TestReserveValidation(t *testing.T) {
	ctx := context.Background()
	ledgerBackend := ledger.NewInMemory()
	acc := setupAccount(t, ledgerBackend, 100)
	service := NewService(ledgerBackend, nil)

	if _, err := service.Reserve(ctx, ReserveInput{AccountID: acc.ID, Amount: "1.00"}); err == nil {
		t.Fatal("expected error for missing item reference")
	}
	if _, err := service.Reserve(ctx, ReserveInput{AccountID: acc.ID, Amount: "nope", ItemRef: "x"}); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := service.Reserve(ctx, ReserveInput{AccountID: acc.ID, Amount: "5.00", ItemRef: "x"}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}
