package postgres

import (
	"context"
	"errors"
	"fmt"

	"balance-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceRepo implements ports.BalanceRepository.
// Amounts are read as text and parsed into domain.Money so no float is involved.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// EnsureExists inserts a zero balance row if absent. ON CONFLICT makes
// concurrent first-touch for the same user safe.
func (r *BalanceRepo) EnsureExists(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	query := `INSERT INTO balances (user_id, amount) VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ensure balance: %w", err)
	}
	return nil
}

// GetForUpdate reads the balance with pessimistic locking.
// This MUST be called within a transaction.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (domain.Money, error) {
	query := `SELECT amount::text FROM balances WHERE user_id = $1 FOR UPDATE`

	var raw string
	if err := tx.QueryRow(ctx, query, userID).Scan(&raw); err != nil {
		return domain.Money{}, fmt.Errorf("get balance for update: %w", err)
	}

	amount, err := domain.ParseMoney(raw)
	if err != nil {
		return domain.Money{}, fmt.Errorf("parse stored balance %q: %w", raw, err)
	}
	return amount, nil
}

// Update writes a new balance within a transaction.
func (r *BalanceRepo) Update(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount domain.Money) error {
	query := `UPDATE balances SET amount = $1::numeric, updated_at = NOW() WHERE user_id = $2`

	tag, err := tx.Exec(ctx, query, amount.String(), userID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("balance not found: %s", userID)
	}
	return nil
}

// Get fetches a balance without locking. A missing row yields nil.
func (r *BalanceRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	query := `SELECT user_id, amount::text, updated_at FROM balances WHERE user_id = $1`

	var (
		b   domain.Balance
		raw string
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(&b.UserID, &raw, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}

	if b.Amount, err = domain.ParseMoney(raw); err != nil {
		return nil, fmt.Errorf("parse stored balance %q: %w", raw, err)
	}
	return &b, nil
}
