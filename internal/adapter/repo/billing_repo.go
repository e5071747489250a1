package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"replyhub/internal/domain"
)

// BillingRepositoryPG implements domain.BillingRepository. The balance lives
// on the shop row and is only ever changed together with an appended ledger
// entry, under a row lock held for the duration of one transaction and never
// across a network call.
type BillingRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBillingRepository creates a credit ledger backed by PostgreSQL.
func NewBillingRepository(pool *pgxpool.Pool) *BillingRepositoryPG {
	return &BillingRepositoryPG{pool: pool}
}

// GetBalance reads the current balance without locking; it is a display
// value and may be stale by the time the caller acts on it.
func (r *BillingRepositoryPG) GetBalance(ctx context.Context, accountID string) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `SELECT credits_balance FROM shops WHERE id = $1;`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// ApplyCredits is the only mutation path. delta > 0 tops up or refunds,
// delta < 0 charges. A mutation that would drive the balance negative is
// rejected with ErrInsufficientCredits; nothing is clamped or partially
// applied. Returns the new balance.
func (r *BillingRepositoryPG) ApplyCredits(ctx context.Context, accountID string, delta int, reason string, meta map[string]any) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance, spent int
	var isActive bool
	err = tx.QueryRow(ctx, `
SELECT credits_balance, credits_spent, is_active FROM shops WHERE id = $1 FOR UPDATE;
`, accountID).Scan(&balance, &spent, &isActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock account: %w", err)
	}
	if !isActive {
		return 0, domain.ErrAccountInactive
	}

	newBalance := balance + delta
	if newBalance < 0 {
		return 0, domain.ErrInsufficientCredits
	}
	if delta < 0 {
		spent += -delta
	}

	if _, err := tx.Exec(ctx, `
UPDATE shops SET credits_balance = $2, credits_spent = $3 WHERE id = $1;
`, accountID, newBalance, spent); err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}

	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshal ledger meta: %w", err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO credit_ledger (id, account_id, delta, balance_after, reason, meta)
VALUES ($1, $2, $3, $4, $5, $6);
`, uuid.NewString(), accountID, delta, newBalance, truncateReason(reason), metaJSON); err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return newBalance, nil
}

// TryCharge converts the insufficient-credits failure into false so callers
// can gate expensive work without error plumbing. Any other failure is real.
func (r *BillingRepositoryPG) TryCharge(ctx context.Context, accountID string, amount int, reason string, meta map[string]any) (bool, error) {
	_, err := r.ApplyCredits(ctx, accountID, -amount, reason, meta)
	if errors.Is(err, domain.ErrInsufficientCredits) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListEntries returns the newest ledger rows for an account.
func (r *BillingRepositoryPG) ListEntries(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, account_id, delta, balance_after, reason, meta, created_at
FROM credit_ledger
WHERE account_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;
`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Delta, &e.BalanceAfter, &e.Reason, &metaJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Meta); err != nil {
				return nil, fmt.Errorf("decode ledger meta: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

func truncateReason(reason string) string {
	if len(reason) > 64 {
		return reason[:64]
	}
	return reason
}

var _ domain.BillingRepository = (*BillingRepositoryPG)(nil)
