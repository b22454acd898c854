package ports

import (
	"context"
	"time"

	"balance-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// HealthChecker reports whether an external dependency is usable.
type HealthChecker interface {
	Ping(ctx context.Context) error // nil if healthy
	Name() string
}

// HashService handles password hashing.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID   uuid.UUID
	Username string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher emits ledger events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

// --- Service Ports (Business Logic) ---

// LedgerService applies deposits and withdrawals atomically.
type LedgerService interface {
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)
}

// ApplyRequest holds a verified user ID and a validated operation.
type ApplyRequest struct {
	UserID         uuid.UUID
	Type           domain.TransactionType
	Amount         domain.Money
	IdempotencyKey string // optional
}

// ApplyResult is the committed transaction and the balance it produced.
type ApplyResult struct {
	Transaction domain.Transaction `json:"transaction"`
	Balance     domain.Money       `json:"balance"`
	Replayed    bool               `json:"-"` // served from an earlier request with the same idempotency key
}

// HistoryService reads a user's balance and recent transactions.
type HistoryService interface {
	History(ctx context.Context, userID uuid.UUID, limit int) (*domain.History, error)
}

// AuthService defines signup and login.
type AuthService interface {
	Signup(ctx context.Context, username, password string) (*AuthResult, error)
	Login(ctx context.Context, username, password string) (*AuthResult, error)
}

// AuthResult is returned by both signup and login.
type AuthResult struct {
	UserID    uuid.UUID
	Username  string
	Token     string
	ExpiresAt time.Time
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
