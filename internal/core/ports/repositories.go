package ports

import (
	"context"
	"errors"

	"balance-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicate is returned by repositories when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Create returns ErrDuplicate when the username is taken.
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// BalanceRepository defines persistence operations for balances.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type BalanceRepository interface {
	// EnsureExists inserts a zero balance for userID if none exists. Concurrent
	// callers never create two rows.
	EnsureExists(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
	// GetForUpdate reads the balance and holds its row lock until tx ends.
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (domain.Money, error)
	Update(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount domain.Money) error
	// Get is a non-locking read. It returns nil when the user has no balance row.
	Get(ctx context.Context, userID uuid.UUID) (*domain.Balance, error)
}

// TransactionRepository defines persistence operations for the append-only transaction log.
type TransactionRepository interface {
	// Create appends t and fills its ID and CreatedAt.
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	// ListRecent returns up to limit transactions, newest first.
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
	// GetByIdempotencyKey returns nil when no transaction carries key.
	GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, userID uuid.UUID, key string) (*domain.Transaction, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
