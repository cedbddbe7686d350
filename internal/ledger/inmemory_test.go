package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func newTestAccount(t *testing.T, l Ledger, balance int64) Account {
	t.Helper()
	acc, err := l.CreateAccount(context.Background(), uuid.NewString(), "USD")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if balance > 0 {
		if _, err := l.Credit(context.Background(), acc.ID, balance, AdjustmentMeta{Reason: "seed", ActorRef: "test"}); err != nil {
			t.Fatalf("seed credit: %v", err)
		}
	}
	refreshed, err := l.GetAccount(context.Background(), acc.OwnerID)
	if err != nil {
		t.Fatalf("refresh account: %v", err)
	}
	return refreshed
}

// assertContinuity checks the ledger continuity invariant over a
// most-recent-first listing: each transaction's BalanceAfter equals the
// next transaction's BalanceBefore.
func assertContinuity(t *testing.T, txs []Transaction) {
	t.Helper()
	for i := len(txs) - 1; i > 0; i-- {
		older, newer := txs[i], txs[i-1]
		if older.BalanceAfter != newer.BalanceBefore {
			t.Fatalf("continuity broken between %s (after=%d) and %s (before=%d)",
				older.ID, older.BalanceAfter, newer.ID, newer.BalanceBefore)
		}
	}
}

func TestCreateAccountDuplicateOwner(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	ownerID := uuid.NewString()

	first, err := l.CreateAccount(ctx, ownerID, "USD")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := l.CreateAccount(ctx, ownerID, "USD"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// The original account survives the failed duplicate creation.
	got, err := l.GetAccount(ctx, ownerID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected account %s, got %s", first.ID, got.ID)
	}

	if _, err := l.GetAccount(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}
}

func TestCreditDebitContinuity(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	acc := newTestAccount(t, l, 0)

	if _, err := l.Credit(ctx, acc.ID, 10_000, AdjustmentMeta{Reason: "earnings", ActorRef: "payout-job"}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := l.Debit(ctx, acc.ID, 2_500, AdjustmentMeta{Reason: "payout", ActorRef: "payout-job"}); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if _, err := l.Credit(ctx, acc.ID, 100, AdjustmentMeta{Reason: "bonus", ActorRef: "promo"}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	got, err := l.GetAccount(ctx, acc.OwnerID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Balance != 7_600 {
		t.Fatalf("expected balance 7600, got %d", got.Balance)
	}

	txs, err := l.Transactions(ctx, acc.ID, Query{})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	assertContinuity(t, txs)
	if txs[0].BalanceAfter != 7_600 {
		t.Fatalf("expected latest BalanceAfter 7600, got %d", txs[0].BalanceAfter)
	}
}

func TestInvalidAmounts(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	acc := newTestAccount(t, l, 1_000)

	if _, err := l.Credit(ctx, acc.ID, 0, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("credit zero: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := l.Debit(ctx, acc.ID, -5, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("debit negative: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := l.Reserve(ctx, acc.ID, 0, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("reserve zero: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := l.TopUp(ctx, acc.OwnerID, -1, "k", TopUpMeta{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("top-up negative: expected ErrInvalidAmount, got %v", err)
	}
}

func TestDebitInsufficientFundsLeavesAccountUntouched(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	acc := newTestAccount(t, l, 100)

	before, err := l.GetAccount(ctx, acc.OwnerID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	logBefore, err := l.Transactions(ctx, acc.ID, Query{})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}

	if _, err := l.Debit(ctx, acc.ID, before.Balance+1, nil); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	after, err := l.GetAccount(ctx, acc.OwnerID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if after != before {
		t.Fatalf("account changed on failed debit: before=%+v after=%+v", before, after)
	}
	logAfter, err := l.Transactions(ctx, acc.ID, Query{})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(logAfter) != len(logBefore) {
		t.Fatalf("log grew on failed debit: %d -> %d", len(logBefore), len(logAfter))
	}
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	acc := newTestAccount(t, l, 2_000)

	res, err := l.Reserve(ctx, acc.ID, 500, PurchaseMeta{ItemRef: "video-9", CounterpartyRef: "creator-1"})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	mid, _ := l.GetAccount(ctx, acc.OwnerID)
	if mid.Balance != 1_500 || mid.ReservedBalance != 500 {
		t.Fatalf("after reserve: balance=%d reserved=%d", mid.Balance, mid.ReservedBalance)
	}

	rel, err := l.ReleaseReservation(ctx, res.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if rel.Type != TypeRelease || rel.Status != StatusCompleted {
		t.Fatalf("unexpected release record %s/%s", rel.Type, rel.Status)
	}

	after, _ := l.GetAccount(ctx, acc.OwnerID)
	if after.Balance != 2_000 || after.ReservedBalance != 0 {
		t.Fatalf("round trip did not restore balances: balance=%d reserved=%d", after.Balance, after.ReservedBalance)
	}
}

func TestReserveCommitConservation(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	acc := newTestAccount(t, l, 2_000)

	meta := PurchaseMeta{ItemRef: "track-4", CounterpartyRef: "creator-2"}
	res, err := l.Reserve(ctx, acc.ID, 500, meta)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	settled, err := l.CommitReservation(ctx, res.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if settled.Type != TypeDebit || settled.Status != StatusCompleted {
		t.Fatalf("unexpected settlement record %s/%s", settled.Type, settled.Status)
	}
	if settled.BalanceBefore != settled.BalanceAfter {
		t.Fatalf("settlement moved spendable balance: before=%d after=%d", settled.BalanceBefore, settled.BalanceAfter)
	}
	if settled.Meta != Meta(meta) {
		t.Fatalf("settlement lost the reservation meta: %+v", settled.Meta)
	}

	after, _ := l.GetAccount(ctx, acc.OwnerID)
	if after.Balance != 1_500 || after.ReservedBalance != 0 {
		t.Fatalf("after commit: balance=%d reserved=%d", after.Balance, after.ReservedBalance)
	}

	// The RESERVE record itself transitioned to COMPLETED.
	reserves, err := l.Transactions(ctx, acc.ID, Query{Types: []Type{TypeReserve}})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(reserves) != 1 || reserves[0].Status != StatusCompleted {
		t.Fatalf("expected one COMPLETED reserve record, got %+v", reserves)
	}
}

func TestReservationScenarioBranches(t *testing.T) {
	ctx := context.Background()

	// Branch A: commit.
	l := NewInMemory()
	acc := newTestAccount(t, l, 10_000)
	res, err := l.Reserve(ctx, acc.ID, 2_500, PurchaseMeta{ItemRef: "stream-1", CounterpartyRef: "creator-7"})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	mid, _ := l.GetAccount(ctx, acc.OwnerID)
	if mid.Balance != 7_500 || mid.ReservedBalance != 2_500 {
		t.Fatalf("after reserve: balance=%d reserved=%d", mid.Balance, mid.ReservedBalance)
	}
	if _, err := l.CommitReservation(ctx, res.ID); err != nil {
		t.Fatalf("commit: %v", err)
	}
	after, _ := l.GetAccount(ctx, acc.OwnerID)
	if after.Balance != 7_500 || after.ReservedBalance != 0 {
		t.Fatalf("after commit: balance=%d reserved=%d", after.Balance, after.ReservedBalance)
	}
	txs, _ := l.Transactions(ctx, acc.ID, Query{})
	var sawCompletedReserve, sawSettlementDebit bool
	for _, tx := range txs {
		if tx.Type == TypeReserve && tx.Status == StatusCompleted {
			sawCompletedReserve = true
		}
		if tx.Type == TypeDebit && tx.Status == StatusCompleted && tx.Amount == 2_500 {
			sawSettlementDebit = true
		}
	}
	if !sawCompletedReserve || !sawSettlementDebit {
		t.Fatalf("commit branch log missing entries: reserve=%v debit=%v", sawCompletedReserve, sawSettlementDebit)
	}

	// Branch B: release, on an independent run.
	l = NewInMemory()
	acc = newTestAccount(t, l, 10_000)
	res, err = l.Reserve(ctx, acc.ID, 2_500, PurchaseMeta{ItemRef: "stream-1", CounterpartyRef: "creator-7"})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := l.ReleaseReservation(ctx, res.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	after, _ = l.GetAccount(ctx, acc.OwnerID)
	if after.Balance != 10_000 || after.ReservedBalance != 0 {
		t.Fatalf("after release: balance=%d reserved=%d", after.Balance, after.ReservedBalance)
	}
	txs, _ = l.Transactions(ctx, acc.ID, Query{})
	var sawReversedReserve, sawRelease bool
	for _, tx := range txs {
		if tx.Type == TypeReserve && tx.Status == StatusReversed {
			sawReversedReserve = true
		}
		if tx.Type == TypeRelease && tx.Status == StatusCompleted {
			sawRelease = true
		}
	}
	if !sawReversedReserve || !sawRelease {
		t.Fatalf("release branch log missing entries: reserve=%v release=%v", sawReversedReserve, sawRelease)
	}
}

func TestReservationInvalidState(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	acc := newTestAccount(t, l, 1_000)

	res, err := l.Reserve(ctx, acc.ID, 400, nil)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := l.CommitReservation(ctx, res.ID); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := l.CommitReservation(ctx, res.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second commit: expected ErrInvalidState, got %v", err)
	}
	if _, err := l.ReleaseReservation(ctx, res.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("release after commit: expected ErrInvalidState, got %v", err)
	}
	if _, err := l.CommitReservation(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("commit unknown: expected ErrNotFound, got %v", err)
	}
}

func TestTopUpIdempotent(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	acc := newTestAccount(t, l, 0)
	meta := TopUpMeta{Provider: "stripe", Reference: "ref-1"}

	first, err := l.TopUp(ctx, acc.OwnerID, 1_000, "ref-1", meta)
	if err != nil {
		t.Fatalf("first top-up: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first top-up reported duplicate")
	}
	if first.Transaction.IdempotencyKey != "ref-1" {
		t.Fatalf("key not persisted on transaction: %+v", first.Transaction)
	}

	second, err := l.TopUp(ctx, acc.OwnerID, 1_000, "ref-1", meta)
	if err != nil {
		t.Fatalf("second top-up: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second top-up not reported duplicate")
	}
	if second.Transaction.ID != first.Transaction.ID {
		t.Fatalf("duplicate references wrong transaction: %s != %s", second.Transaction.ID, first.Transaction.ID)
	}

	after, _ := l.GetAccount(ctx, acc.OwnerID)
	if after.Balance != 1_000 {
		t.Fatalf("expected exactly one credit, balance=%d", after.Balance)
	}
}

func TestTopUpConflictOnPendingKey(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	acc := newTestAccount(t, l, 0)

	SeedKeyedTransaction(l, acc.ID, "inflight", StatusPending)

	if _, err := l.TopUp(ctx, acc.OwnerID, 500, "inflight", TopUpMeta{Provider: "stripe", Reference: "inflight"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	after, _ := l.GetAccount(ctx, acc.OwnerID)
	if after.Balance != 0 {
		t.Fatalf("balance changed on conflicting top-up: %d", after.Balance)
	}
}

func TestConcurrentUnitDebits(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	const workers = 64
	acc := newTestAccount(t, l, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Debit(ctx, acc.ID, 1, nil); err != nil {
				t.Errorf("debit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	after, err := l.GetAccount(ctx, acc.OwnerID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if after.Balance != 0 {
		t.Fatalf("lost updates: expected balance 0, got %d", after.Balance)
	}

	txs, err := l.Transactions(ctx, acc.ID, Query{Limit: workers + 1})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != workers+1 {
		t.Fatalf("expected %d transactions, got %d", workers+1, len(txs))
	}
	assertContinuity(t, txs)
}

func TestConcurrentReserveReleaseInvariants(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	const workers = 32
	acc := newTestAccount(t, l, workers*10)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := l.Reserve(ctx, acc.ID, 10, nil)
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			if i%2 == 0 {
				_, err = l.CommitReservation(ctx, res.ID)
			} else {
				_, err = l.ReleaseReservation(ctx, res.ID)
			}
			if err != nil {
				t.Errorf("settle: %v", err)
			}
		}(i)
	}
	wg.Wait()

	after, err := l.GetAccount(ctx, acc.OwnerID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if after.ReservedBalance != 0 {
		t.Fatalf("reserved balance not drained: %d", after.ReservedBalance)
	}
	// Half the reservations committed, half released.
	if after.Balance != int64(workers*10-(workers/2)*10) {
		t.Fatalf("unexpected final balance %d", after.Balance)
	}
	if after.Balance < 0 || after.ReservedBalance < 0 {
		t.Fatalf("negative balance: %+v", after)
	}
}

func TestTransactionsQueryFilters(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	acc := newTestAccount(t, l, 0)

	if _, err := l.TopUp(ctx, acc.OwnerID, 5_000, "q-ref", TopUpMeta{Provider: "stripe", Reference: "q-ref"}); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	if _, err := l.Debit(ctx, acc.ID, 1_000, nil); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if _, err := l.Reserve(ctx, acc.ID, 500, nil); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	completed, err := l.Transactions(ctx, acc.ID, Query{
		Types:    []Type{TypeCredit, TypeDebit},
		Statuses: []Status{StatusCompleted},
	})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed credit/debit records, got %d", len(completed))
	}
	for _, tx := range completed {
		if tx.Type == TypeReserve {
			t.Fatalf("pending reserve leaked into filtered listing: %+v", tx)
		}
	}

	limited, err := l.Transactions(ctx, acc.ID, Query{Limit: 1})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(limited) != 1 || limited[0].Type != TypeReserve {
		t.Fatalf("expected the reserve as most recent record, got %+v", limited)
	}

	keyed, err := l.Transactions(ctx, acc.ID, Query{IdempotencyKey: "q-ref"})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(keyed) != 1 || keyed[0].IdempotencyKey != "q-ref" {
		t.Fatalf("idempotency key lookup failed: %+v", keyed)
	}

	if _, err := l.Transactions(ctx, uuid.NewString(), Query{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}
}
