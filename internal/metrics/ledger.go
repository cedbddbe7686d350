package metrics

import (
	"context"
	"time"

	"github.com/creatorpay/creatorpay/internal/ledger"
)

// instrumentedLedger wraps a ledger backend with the collector. It adds
// no semantics of its own.
type instrumentedLedger struct {
	next      ledger.Ledger
	collector *Collector
}

// Instrument decorates a ledger backend with operation metrics.
func Instrument(next ledger.Ledger, collector *Collector) ledger.Ledger {
	if collector == nil {
		return next
	}
	return &instrumentedLedger{next: next, collector: collector}
}

func (l *instrumentedLedger) CreateAccount(ctx context.Context, ownerID, currency string) (ledger.Account, error) {
	start := time.Now()
	acc, err := l.next.CreateAccount(ctx, ownerID, currency)
	l.collector.RecordOperation("create_account", err, time.Since(start))
	return acc, err
}

func (l *instrumentedLedger) GetAccount(ctx context.Context, ownerID string) (ledger.Account, error) {
	start := time.Now()
	acc, err := l.next.GetAccount(ctx, ownerID)
	l.collector.RecordOperation("get_account", err, time.Since(start))
	if err == nil {
		l.collector.SetBalances(acc.ID, acc.Balance, acc.ReservedBalance)
	}
	return acc, err
}

func (l *instrumentedLedger) Credit(ctx context.Context, accountID string, amount int64, meta ledger.Meta) (ledger.Transaction, error) {
	start := time.Now()
	tx, err := l.next.Credit(ctx, accountID, amount, meta)
	l.collector.RecordOperation("credit", err, time.Since(start))
	return tx, err
}

func (l *instrumentedLedger) Debit(ctx context.Context, accountID string, amount int64, meta ledger.Meta) (ledger.Transaction, error) {
	start := time.Now()
	tx, err := l.next.Debit(ctx, accountID, amount, meta)
	l.collector.RecordOperation("debit", err, time.Since(start))
	return tx, err
}

func (l *instrumentedLedger) Reserve(ctx context.Context, accountID string, amount int64, meta ledger.Meta) (ledger.Transaction, error) {
	start := time.Now()
	tx, err := l.next.Reserve(ctx, accountID, amount, meta)
	l.collector.RecordOperation("reserve", err, time.Since(start))
	return tx, err
}

func (l *instrumentedLedger) CommitReservation(ctx context.Context, reservationID string) (ledger.Transaction, error) {
	start := time.Now()
	tx, err := l.next.CommitReservation(ctx, reservationID)
	l.collector.RecordOperation("commit_reservation", err, time.Since(start))
	return tx, err
}

func (l *instrumentedLedger) ReleaseReservation(ctx context.Context, reservationID string) (ledger.Transaction, error) {
	start := time.Now()
	tx, err := l.next.ReleaseReservation(ctx, reservationID)
	l.collector.RecordOperation("release_reservation", err, time.Since(start))
	return tx, err
}

func (l *instrumentedLedger) TopUp(ctx context.Context, ownerID string, amount int64, idempotencyKey string, meta ledger.TopUpMeta) (ledger.TopUpResult, error) {
	start := time.Now()
	res, err := l.next.TopUp(ctx, ownerID, amount, idempotencyKey, meta)
	l.collector.RecordOperation("top_up", err, time.Since(start))
	return res, err
}

func (l *instrumentedLedger) Transactions(ctx context.Context, accountID string, q ledger.Query) ([]ledger.Transaction, error) {
	start := time.Now()
	txs, err := l.next.Transactions(ctx, accountID, q)
	l.collector.RecordOperation("transactions", err, time.Since(start))
	return txs, err
}
