package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// writeRetryBudget bounds internal retries of write races (serialization
// failures, deadlocks) before they surface as ErrConflict.
const writeRetryBudget = 3

// PostgresLedger persists accounts and the transaction log in
// PostgreSQL. Each mutating operation runs in a single database
// transaction holding a row lock on the account, so the balance change
// and the log append commit together or not at all.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const txColumns = `id, account_id, type, status, amount, currency, balance_before, balance_after, meta, idempotency_key, created_at`

func (l *PostgresLedger) CreateAccount(ctx context.Context, ownerID, currency string) (Account, error) {
	if ownerID == "" {
		return Account{}, fmt.Errorf("owner id is required")
	}

	acc := Account{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Currency: currency,
		Active:   true,
	}
	row := l.db.QueryRow(ctx, `INSERT INTO accounts (id, owner_id, balance, reserved_balance, currency, active)
        VALUES ($1, $2, 0, 0, $3, TRUE) RETURNING created_at`, acc.ID, ownerID, currency)
	if err := row.Scan(&acc.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return Account{}, fmt.Errorf("owner %s: %w", ownerID, ErrAlreadyExists)
		}
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

func (l *PostgresLedger) GetAccount(ctx context.Context, ownerID string) (Account, error) {
	row := l.db.QueryRow(ctx, `SELECT id, owner_id, balance, reserved_balance, currency, active, created_at
        FROM accounts WHERE owner_id = $1`, ownerID)
	var acc Account
	if err := row.Scan(&acc.ID, &acc.OwnerID, &acc.Balance, &acc.ReservedBalance, &acc.Currency, &acc.Active, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
		}
		return Account{}, err
	}
	return acc, nil
}

// withRetry runs fn in a database transaction, retrying write races up
// to the budget before surfacing ErrConflict.
func (l *PostgresLedger) withRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < writeRetryBudget; attempt++ {
		err = l.runTx(ctx, fn)
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("write retry budget exhausted: %w", ErrConflict)
}

func (l *PostgresLedger) runTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// lockAccount loads the account row under FOR UPDATE, serializing all
// mutations against it for the duration of the transaction.
func lockAccount(ctx context.Context, tx pgx.Tx, accountID string) (Account, error) {
	row := tx.QueryRow(ctx, `SELECT id, owner_id, balance, reserved_balance, currency, active, created_at
        FROM accounts WHERE id = $1 FOR UPDATE`, accountID)
	var acc Account
	if err := row.Scan(&acc.ID, &acc.OwnerID, &acc.Balance, &acc.ReservedBalance, &acc.Currency, &acc.Active, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		return Account{}, err
	}
	return acc, nil
}

func lockAccountByOwner(ctx context.Context, tx pgx.Tx, ownerID string) (Account, error) {
	row := tx.QueryRow(ctx, `SELECT id, owner_id, balance, reserved_balance, currency, active, created_at
        FROM accounts WHERE owner_id = $1 FOR UPDATE`, ownerID)
	var acc Account
	if err := row.Scan(&acc.ID, &acc.OwnerID, &acc.Balance, &acc.ReservedBalance, &acc.Currency, &acc.Active, &acc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("owner %s: %w", ownerID, ErrNotFound)
		}
		return Account{}, err
	}
	return acc, nil
}

func updateBalances(ctx context.Context, tx pgx.Tx, accountID string, balance, reserved int64) error {
	_, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, reserved_balance = $2 WHERE id = $3`,
		balance, reserved, accountID)
	return err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	meta, err := EncodeMeta(t.Meta)
	if err != nil {
		return err
	}
	var key *string
	if t.IdempotencyKey != "" {
		key = &t.IdempotencyKey
	}
	row := tx.QueryRow(ctx, `INSERT INTO transactions
        (id, account_id, type, status, amount, currency, balance_before, balance_after, meta, idempotency_key)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`,
		t.ID, t.AccountID, string(t.Type), string(t.Status), t.Amount, t.Currency,
		t.BalanceBefore, t.BalanceAfter, meta, key)
	return row.Scan(&t.CreatedAt)
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var meta []byte
	var key *string
	if err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.Status, &t.Amount, &t.Currency,
		&t.BalanceBefore, &t.BalanceAfter, &meta, &key, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	if key != nil {
		t.IdempotencyKey = *key
	}
	decoded, err := DecodeMeta(meta)
	if err != nil {
		return Transaction{}, err
	}
	t.Meta = decoded
	return t, nil
}

func (l *PostgresLedger) Credit(ctx context.Context, accountID string, amount int64, meta Meta) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("credit of %d: %w", amount, ErrInvalidAmount)
	}

	var out Transaction
	err := l.withRetry(ctx, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if err := updateBalances(ctx, tx, acc.ID, acc.Balance+amount, acc.ReservedBalance); err != nil {
			return err
		}
		out = Transaction{
			ID:            uuid.NewString(),
			AccountID:     acc.ID,
			Type:          TypeCredit,
			Status:        StatusCompleted,
			Amount:        amount,
			Currency:      acc.Currency,
			BalanceBefore: acc.Balance,
			BalanceAfter:  acc.Balance + amount,
			Meta:          meta,
		}
		return insertTransaction(ctx, tx, &out)
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (l *PostgresLedger) Debit(ctx context.Context, accountID string, amount int64, meta Meta) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("debit of %d: %w", amount, ErrInvalidAmount)
	}

	var out Transaction
	err := l.withRetry(ctx, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if acc.Balance < amount {
			return fmt.Errorf("debit of %d against balance %d: %w", amount, acc.Balance, ErrInsufficientFunds)
		}
		if err := updateBalances(ctx, tx, acc.ID, acc.Balance-amount, acc.ReservedBalance); err != nil {
			return err
		}
		out = Transaction{
			ID:            uuid.NewString(),
			AccountID:     acc.ID,
			Type:          TypeDebit,
			Status:        StatusCompleted,
			Amount:        amount,
			Currency:      acc.Currency,
			BalanceBefore: acc.Balance,
			BalanceAfter:  acc.Balance - amount,
			Meta:          meta,
		}
		return insertTransaction(ctx, tx, &out)
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (l *PostgresLedger) Reserve(ctx context.Context, accountID string, amount int64, meta Meta) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("reservation of %d: %w", amount, ErrInvalidAmount)
	}

	var out Transaction
	err := l.withRetry(ctx, func(tx pgx.Tx) error {
		acc, err := lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if acc.Balance < amount {
			return fmt.Errorf("reservation of %d against balance %d: %w", amount, acc.Balance, ErrInsufficientFunds)
		}
		if err := updateBalances(ctx, tx, acc.ID, acc.Balance-amount, acc.ReservedBalance+amount); err != nil {
			return err
		}
		out = Transaction{
			ID:            uuid.NewString(),
			AccountID:     acc.ID,
			Type:          TypeReserve,
			Status:        StatusPending,
			Amount:        amount,
			Currency:      acc.Currency,
			BalanceBefore: acc.Balance,
			BalanceAfter:  acc.Balance - amount,
			Meta:          meta,
		}
		return insertTransaction(ctx, tx, &out)
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

// lockReservation loads a RESERVE transaction row under FOR UPDATE so a
// concurrent commit and release cannot both observe it pending.
func lockReservation(ctx context.Context, tx pgx.Tx, reservationID string) (Transaction, error) {
	res, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+txColumns+`
        FROM transactions WHERE id = $1 FOR UPDATE`, reservationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, fmt.Errorf("reservation %s: %w", reservationID, ErrNotFound)
		}
		return Transaction{}, err
	}
	if res.Type != TypeReserve {
		return Transaction{}, fmt.Errorf("reservation %s: %w", reservationID, ErrNotFound)
	}
	return res, nil
}

func settleReservation(ctx context.Context, tx pgx.Tx, reservationID string, to Status) error {
	tag, err := tx.Exec(ctx, `UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), reservationID, string(StatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("reservation %s already settled: %w", reservationID, ErrInvalidState)
	}
	return nil
}

func (l *PostgresLedger) CommitReservation(ctx context.Context, reservationID string) (Transaction, error) {
	var out Transaction
	err := l.withRetry(ctx, func(tx pgx.Tx) error {
		res, err := lockReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != StatusPending {
			return fmt.Errorf("commit reservation %s in status %s: %w", reservationID, res.Status, ErrInvalidState)
		}
		acc, err := lockAccount(ctx, tx, res.AccountID)
		if err != nil {
			return err
		}
		if err := updateBalances(ctx, tx, acc.ID, acc.Balance, acc.ReservedBalance-res.Amount); err != nil {
			return err
		}
		if err := settleReservation(ctx, tx, reservationID, StatusCompleted); err != nil {
			return err
		}
		// Spendable balance was already reduced at reserve time; the
		// settlement debit records no further movement.
		out = Transaction{
			ID:            uuid.NewString(),
			AccountID:     acc.ID,
			Type:          TypeDebit,
			Status:        StatusCompleted,
			Amount:        res.Amount,
			Currency:      acc.Currency,
			BalanceBefore: acc.Balance,
			BalanceAfter:  acc.Balance,
			Meta:          res.Meta,
		}
		return insertTransaction(ctx, tx, &out)
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (l *PostgresLedger) ReleaseReservation(ctx context.Context, reservationID string) (Transaction, error) {
	var out Transaction
	err := l.withRetry(ctx, func(tx pgx.Tx) error {
		res, err := lockReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != StatusPending {
			return fmt.Errorf("release reservation %s in status %s: %w", reservationID, res.Status, ErrInvalidState)
		}
		acc, err := lockAccount(ctx, tx, res.AccountID)
		if err != nil {
			return err
		}
		if err := updateBalances(ctx, tx, acc.ID, acc.Balance+res.Amount, acc.ReservedBalance-res.Amount); err != nil {
			return err
		}
		if err := settleReservation(ctx, tx, reservationID, StatusReversed); err != nil {
			return err
		}
		out = Transaction{
			ID:            uuid.NewString(),
			AccountID:     acc.ID,
			Type:          TypeRelease,
			Status:        StatusCompleted,
			Amount:        res.Amount,
			Currency:      acc.Currency,
			BalanceBefore: acc.Balance,
			BalanceAfter:  acc.Balance + res.Amount,
			Meta:          res.Meta,
		}
		return insertTransaction(ctx, tx, &out)
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func (l *PostgresLedger) TopUp(ctx context.Context, ownerID string, amount int64, idempotencyKey string, meta TopUpMeta) (TopUpResult, error) {
	if amount <= 0 {
		return TopUpResult{}, fmt.Errorf("top-up of %d: %w", amount, ErrInvalidAmount)
	}
	if idempotencyKey == "" {
		return TopUpResult{}, fmt.Errorf("idempotency key is required")
	}

	var out TopUpResult
	err := l.withRetry(ctx, func(tx pgx.Tx) error {
		acc, err := lockAccountByOwner(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		prev, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+txColumns+`
            FROM transactions WHERE idempotency_key = $1`, idempotencyKey))
		if err == nil {
			if prev.Status == StatusCompleted {
				out = TopUpResult{Duplicate: true, Transaction: prev}
				return nil
			}
			return fmt.Errorf("idempotency key %s held by %s transaction: %w", idempotencyKey, prev.Status, ErrConflict)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		if err := updateBalances(ctx, tx, acc.ID, acc.Balance+amount, acc.ReservedBalance); err != nil {
			return err
		}
		credit := Transaction{
			ID:             uuid.NewString(),
			AccountID:      acc.ID,
			Type:           TypeCredit,
			Status:         StatusCompleted,
			Amount:         amount,
			Currency:       acc.Currency,
			BalanceBefore:  acc.Balance,
			BalanceAfter:   acc.Balance + amount,
			Meta:           meta,
			IdempotencyKey: idempotencyKey,
		}
		if err := insertTransaction(ctx, tx, &credit); err != nil {
			return err
		}
		out = TopUpResult{Transaction: credit}
		return nil
	})
	if err != nil {
		// A concurrent call won the unique index on the key.
		if isUniqueViolation(err) {
			return TopUpResult{}, fmt.Errorf("idempotency key %s: %w", idempotencyKey, ErrConflict)
		}
		return TopUpResult{}, err
	}
	return out, nil
}

func (l *PostgresLedger) Transactions(ctx context.Context, accountID string, q Query) ([]Transaction, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	query := `SELECT ` + txColumns + ` FROM transactions WHERE account_id = $1`
	args := []any{accountID}
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		query += fmt.Sprintf(` AND type = ANY($%d)`, len(args))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		query += fmt.Sprintf(` AND status = ANY($%d)`, len(args))
	}
	if q.IdempotencyKey != "" {
		args = append(args, q.IdempotencyKey)
		query += fmt.Sprintf(` AND idempotency_key = $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY seq DESC LIMIT $%d`, len(args))

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
