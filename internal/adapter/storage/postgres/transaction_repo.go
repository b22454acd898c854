package postgres

import (
	"context"
	"errors"
	"fmt"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, user_id, type, amount::text, balance_after::text, COALESCE(idempotency_key, ''), created_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a transaction within a database transaction. ID and
// CreatedAt are assigned by the database.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (user_id, type, amount, balance_after, idempotency_key)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5)
		RETURNING id, created_at`

	err := tx.QueryRow(ctx, query,
		t.UserID, string(t.Type), t.Amount.String(), t.BalanceAfter.String(),
		nullableString(t.IdempotencyKey),
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert transaction: %w", ports.ErrDuplicate)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListRecent returns the newest transactions first; id breaks created_at ties.
func (r *TransactionRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// GetByIdempotencyKey looks up an earlier transaction inside tx, so a caller
// holding the balance lock sees every committed retry.
func (r *TransactionRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, userID uuid.UUID, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions WHERE user_id = $1 AND idempotency_key = $2`

	t, err := scanTransaction(tx.QueryRow(ctx, query, userID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t                    domain.Transaction
		txType               string
		amount, balanceAfter string
	)
	err := row.Scan(&t.ID, &t.UserID, &txType, &amount, &balanceAfter, &t.IdempotencyKey, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.Type = domain.TransactionType(txType)
	if t.Amount, err = domain.ParseMoney(amount); err != nil {
		return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	if t.BalanceAfter, err = domain.ParseMoney(balanceAfter); err != nil {
		return nil, fmt.Errorf("parse stored balance_after %q: %w", balanceAfter, err)
	}
	return &t, nil
}
