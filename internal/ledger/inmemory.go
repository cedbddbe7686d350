package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// defaultLockWait bounds how long a mutation waits for an account
	// that is already mid-operation before giving up with ErrConflict.
	defaultLockWait = 2 * time.Second

	defaultQueryLimit = 50
)

// memAccount pairs the account record with its write token. The busy
// channel holds at most one token, so at most one mutation is in flight
// per account at any instant.
type memAccount struct {
	Account
	busy chan struct{}
}

type inMemoryLedger struct {
	mu        sync.RWMutex
	accounts  map[string]*memAccount
	byOwner   map[string]string
	log       []*Transaction
	byTxID    map[string]*Transaction
	byIdemKey map[string]*Transaction
	lockWait  time.Duration
}

// NewInMemory creates a concurrency-safe in-memory ledger used in dev
// mode and unit tests. Balance mutation and log append happen under one
// critical section, so readers always observe them together.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		accounts:  make(map[string]*memAccount),
		byOwner:   make(map[string]string),
		byTxID:    make(map[string]*Transaction),
		byIdemKey: make(map[string]*Transaction),
		lockWait:  defaultLockWait,
	}
}

func (l *inMemoryLedger) CreateAccount(_ context.Context, ownerID, currency string) (Account, error) {
	if ownerID == "" {
		return Account{}, fmt.Errorf("owner id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byOwner[ownerID]; exists {
		return Account{}, fmt.Errorf("owner %s: %w", ownerID, ErrAlreadyExists)
	}

	acc := &memAccount{
		Account: Account{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Currency:  currency,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		},
		busy: make(chan struct{}, 1),
	}
	l.accounts[acc.ID] = acc
	l.byOwner[ownerID] = acc.ID
	return acc.Account, nil
}

func (l *inMemoryLedger) GetAccount(_ context.Context, ownerID string) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byOwner[ownerID]
	if !ok {
		return Account{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}
	// Value copy under the read lock: balance and reserved balance are
	// one consistent snapshot, never torn.
	return l.accounts[id].Account, nil
}

// withAccount serializes a read-modify-write against one account. The
// per-account token bounds waiting (ErrConflict on timeout) and the
// global lock makes the mutation plus log append atomic with respect to
// readers. fn must not mutate anything before deciding to fail.
func (l *inMemoryLedger) withAccount(ctx context.Context, accountID string, fn func(acc *memAccount) error) error {
	l.mu.RLock()
	acc, ok := l.accounts[accountID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}

	wait := time.NewTimer(l.lockWait)
	defer wait.Stop()
	select {
	case acc.busy <- struct{}{}:
	case <-wait.C:
		return fmt.Errorf("account %s busy: %w", accountID, ErrConflict)
	case <-ctx.Done():
		return fmt.Errorf("acquire account %s: %w", accountID, ctx.Err())
	}
	defer func() { <-acc.busy }()

	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(acc)
}

// appendLocked records a transaction. Callers hold l.mu.
func (l *inMemoryLedger) appendLocked(acc *memAccount, t Type, st Status, amount, before, after int64, meta Meta, key string) Transaction {
	tx := &Transaction{
		ID:             uuid.NewString(),
		AccountID:      acc.ID,
		Type:           t,
		Status:         st,
		Amount:         amount,
		Currency:       acc.Currency,
		BalanceBefore:  before,
		BalanceAfter:   after,
		Meta:           meta,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
	l.log = append(l.log, tx)
	l.byTxID[tx.ID] = tx
	if key != "" {
		l.byIdemKey[key] = tx
	}
	return *tx
}

func (l *inMemoryLedger) Credit(ctx context.Context, accountID string, amount int64, meta Meta) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("credit of %d: %w", amount, ErrInvalidAmount)
	}

	var out Transaction
	err := l.withAccount(ctx, accountID, func(acc *memAccount) error {
		before := acc.Balance
		acc.Balance += amount
		out = l.appendLocked(acc, TypeCredit, StatusCompleted, amount, before, acc.Balance, meta, "")
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (l *inMemoryLedger) Debit(ctx context.Context, accountID string, amount int64, meta Meta) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("debit of %d: %w", amount, ErrInvalidAmount)
	}

	var out Transaction
	err := l.withAccount(ctx, accountID, func(acc *memAccount) error {
		if acc.Balance < amount {
			return fmt.Errorf("debit of %d against balance %d: %w", amount, acc.Balance, ErrInsufficientFunds)
		}
		before := acc.Balance
		acc.Balance -= amount
		out = l.appendLocked(acc, TypeDebit, StatusCompleted, amount, before, acc.Balance, meta, "")
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (l *inMemoryLedger) Reserve(ctx context.Context, accountID string, amount int64, meta Meta) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("reservation of %d: %w", amount, ErrInvalidAmount)
	}

	var out Transaction
	err := l.withAccount(ctx, accountID, func(acc *memAccount) error {
		if acc.Balance < amount {
			return fmt.Errorf("reservation of %d against balance %d: %w", amount, acc.Balance, ErrInsufficientFunds)
		}
		before := acc.Balance
		acc.Balance -= amount
		acc.ReservedBalance += amount
		out = l.appendLocked(acc, TypeReserve, StatusPending, amount, before, acc.Balance, meta, "")
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

// reservation resolves a reservation id to its transaction and owning
// account without taking the write token.
func (l *inMemoryLedger) reservation(reservationID string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.byTxID[reservationID]
	if !ok || res.Type != TypeReserve {
		return "", fmt.Errorf("reservation %s: %w", reservationID, ErrNotFound)
	}
	return res.AccountID, nil
}

func (l *inMemoryLedger) CommitReservation(ctx context.Context, reservationID string) (Transaction, error) {
	accountID, err := l.reservation(reservationID)
	if err != nil {
		return Transaction{}, err
	}

	var out Transaction
	err = l.withAccount(ctx, accountID, func(acc *memAccount) error {
		res := l.byTxID[reservationID]
		if res.Status != StatusPending {
			return fmt.Errorf("commit reservation %s in status %s: %w", reservationID, res.Status, ErrInvalidState)
		}
		acc.ReservedBalance -= res.Amount
		res.Status = StatusCompleted
		// The spendable balance was already reduced at reserve time, so
		// the settlement debit records no further movement.
		out = l.appendLocked(acc, TypeDebit, StatusCompleted, res.Amount, acc.Balance, acc.Balance, res.Meta, "")
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (l *inMemoryLedger) ReleaseReservation(ctx context.Context, reservationID string) (Transaction, error) {
	accountID, err := l.reservation(reservationID)
	if err != nil {
		return Transaction{}, err
	}

	var out Transaction
	err = l.withAccount(ctx, accountID, func(acc *memAccount) error {
		res := l.byTxID[reservationID]
		if res.Status != StatusPending {
			return fmt.Errorf("release reservation %s in status %s: %w", reservationID, res.Status, ErrInvalidState)
		}
		before := acc.Balance
		acc.ReservedBalance -= res.Amount
		acc.Balance += res.Amount
		res.Status = StatusReversed
		out = l.appendLocked(acc, TypeRelease, StatusCompleted, res.Amount, before, acc.Balance, res.Meta, "")
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (l *inMemoryLedger) TopUp(ctx context.Context, ownerID string, amount int64, idempotencyKey string, meta TopUpMeta) (TopUpResult, error) {
	if amount <= 0 {
		return TopUpResult{}, fmt.Errorf("top-up of %d: %w", amount, ErrInvalidAmount)
	}
	if idempotencyKey == "" {
		return TopUpResult{}, fmt.Errorf("idempotency key is required")
	}

	l.mu.RLock()
	accountID, ok := l.byOwner[ownerID]
	l.mu.RUnlock()
	if !ok {
		return TopUpResult{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
	}

	var out TopUpResult
	err := l.withAccount(ctx, accountID, func(acc *memAccount) error {
		if prev, exists := l.byIdemKey[idempotencyKey]; exists {
			if prev.Status == StatusCompleted {
				out = TopUpResult{Duplicate: true, Transaction: *prev}
				return nil
			}
			return fmt.Errorf("idempotency key %s held by %s transaction: %w", idempotencyKey, prev.Status, ErrConflict)
		}
		before := acc.Balance
		acc.Balance += amount
		tx := l.appendLocked(acc, TypeCredit, StatusCompleted, amount, before, acc.Balance, meta, idempotencyKey)
		out = TopUpResult{Transaction: tx}
		return nil
	})
	if err != nil {
		return TopUpResult{}, err
	}
	return out, nil
}

func (l *inMemoryLedger) Transactions(_ context.Context, accountID string, q Query) ([]Transaction, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.accounts[accountID]; !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}

	out := make([]Transaction, 0, limit)
	for i := len(l.log) - 1; i >= 0 && len(out) < limit; i-- {
		tx := l.log[i]
		if tx.AccountID != accountID || !q.matches(tx) {
			continue
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (q Query) matches(tx *Transaction) bool {
	if q.IdempotencyKey != "" && tx.IdempotencyKey != q.IdempotencyKey {
		return false
	}
	if len(q.Types) > 0 && !containsType(q.Types, tx.Type) {
		return false
	}
	if len(q.Statuses) > 0 && !containsStatus(q.Statuses, tx.Status) {
		return false
	}
	return true
}

func containsType(ts []Type, t Type) bool {
	for _, v := range ts {
		if v == t {
			return true
		}
	}
	return false
}

func containsStatus(ss []Status, s Status) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
