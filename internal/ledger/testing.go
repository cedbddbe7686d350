package ledger

import "github.com/google/uuid"

// SeedBalance is a test helper that forces the balances of an account
// when using the in-memory ledger. It writes the balance directly, with
// no log entry, so tests can start from a known position.
func SeedBalance(l Ledger, accountID string, balance, reserved int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if acc, exists := mem.accounts[accountID]; exists {
			acc.Balance = balance
			acc.ReservedBalance = reserved
		}
	}
}

// SeedKeyedTransaction is a test helper that plants a transaction
// holding an idempotency key in the in-memory ledger, in the given
// status, without touching any balance.
func SeedKeyedTransaction(l Ledger, accountID, key string, status Status) string {
	mem, ok := l.(*inMemoryLedger)
	if !ok {
		return ""
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	tx := &Transaction{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Type:           TypeCredit,
		Status:         status,
		Amount:         1,
		IdempotencyKey: key,
	}
	mem.log = append(mem.log, tx)
	mem.byTxID[tx.ID] = tx
	mem.byIdemKey[key] = tx
	return tx.ID
}
