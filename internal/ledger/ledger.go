// Package ledger maintains per-account monetary balances and the
// append-only transaction log that justifies them. Every mutating
// operation applies the balance change and the log append as one
// indivisible unit, and writes to a single account are fully
// serialized. Amounts are integers in minor currency units throughout.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the referenced account or reservation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists occurs when an account is created twice for the same owner.
	ErrAlreadyExists = errors.New("account already exists")

	// ErrInvalidAmount occurs when an operation amount is not a positive
	// number of minor units.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds occurs when the spendable balance cannot cover
	// a debit or reservation.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidState occurs when committing or releasing a reservation
	// that is no longer pending.
	ErrInvalidState = errors.New("reservation is not pending")

	// ErrConflict indicates a write race that exhausted the retry budget,
	// or an idempotency key held by an in-flight transaction. Callers may
	// retry the whole operation.
	ErrConflict = errors.New("conflicting operation in progress")
)

// Type classifies a transaction by the balance movement it records.
type Type string

const (
	TypeCredit  Type = "CREDIT"
	TypeDebit   Type = "DEBIT"
	TypeReserve Type = "RESERVE"
	TypeRelease Type = "RELEASE"
)

// Status is the lifecycle state of a transaction. Only RESERVE rows ever
// transition: PENDING to COMPLETED on commit, PENDING to REVERSED on
// release. Every other transaction is born terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusReversed  Status = "REVERSED"
)

// Account is one owner's wallet. Balance is spendable; ReservedBalance
// holds funds earmarked for not-yet-settled purchases. Both are always
// non-negative.
type Account struct {
	ID              string
	OwnerID         string
	Balance         int64
	ReservedBalance int64
	Currency        string
	Active          bool
	CreatedAt       time.Time
}

// Transaction is one immutable record of a balance-affecting event.
// BalanceBefore and BalanceAfter snapshot the spendable balance around
// the mutation, so consecutive transactions for one account chain:
// tx[i].BalanceAfter == tx[i+1].BalanceBefore.
type Transaction struct {
	ID             string
	AccountID      string
	Type           Type
	Status         Status
	Amount         int64
	Currency       string
	BalanceBefore  int64
	BalanceAfter   int64
	Meta           Meta
	IdempotencyKey string
	CreatedAt      time.Time
}

// TopUpResult reports the outcome of an idempotent top-up. When
// Duplicate is set the transaction is the previously completed one and
// no balance change happened.
type TopUpResult struct {
	Duplicate   bool
	Transaction Transaction
}

// Query narrows a transaction listing. Results are always ordered most
// recent first and bounded by Limit (a sensible default applies when
// zero).
type Query struct {
	Types          []Type
	Statuses       []Status
	IdempotencyKey string
	Limit          int
}

// Ledger defines the contract implemented by ledger backends (in-memory
// and Postgres). Mutating operations either apply fully or leave the
// account and log untouched; they never partially apply.
type Ledger interface {
	CreateAccount(ctx context.Context, ownerID, currency string) (Account, error)
	GetAccount(ctx context.Context, ownerID string) (Account, error)

	Credit(ctx context.Context, accountID string, amount int64, meta Meta) (Transaction, error)
	Debit(ctx context.Context, accountID string, amount int64, meta Meta) (Transaction, error)

	Reserve(ctx context.Context, accountID string, amount int64, meta Meta) (Transaction, error)
	CommitReservation(ctx context.Context, reservationID string) (Transaction, error)
	ReleaseReservation(ctx context.Context, reservationID string) (Transaction, error)

	TopUp(ctx context.Context, ownerID string, amount int64, idempotencyKey string, meta TopUpMeta) (TopUpResult, error)

	Transactions(ctx context.Context, accountID string, q Query) ([]Transaction, error)
}
