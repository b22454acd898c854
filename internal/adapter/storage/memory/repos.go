package memory

import (
	"context"
	"errors"
	"fmt"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errDuplicateKey = fmt.Errorf("idempotency key: %w", ports.ErrDuplicate)

func unwrapTx(tx pgx.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok {
		return nil, errors.New("memory store: foreign transaction")
	}
	if mt.closed {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// UserRepo implements ports.UserRepository.
type UserRepo struct{ s *Store }

func NewUserRepo(s *Store) *UserRepo { return &UserRepo{s: s} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.users[u.Username]; taken {
		return fmt.Errorf("insert user: %w", ports.ErrDuplicate)
	}
	r.s.users[u.Username] = *u
	return nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// BalanceRepo implements ports.BalanceRepository.
type BalanceRepo struct{ s *Store }

func NewBalanceRepo(s *Store) *BalanceRepo { return &BalanceRepo{s: s} }

func (r *BalanceRepo) EnsureExists(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	if _, err := unwrapTx(tx); err != nil {
		return err
	}
	r.s.ensureRow(userID)
	return nil
}

func (r *BalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (domain.Money, error) {
	mt, err := unwrapTx(tx)
	if err != nil {
		return domain.Money{}, err
	}
	row, ok := r.s.row(userID)
	if !ok {
		return domain.Money{}, fmt.Errorf("get balance for update: %w", pgx.ErrNoRows)
	}
	if err := mt.lock(ctx, userID, row); err != nil {
		return domain.Money{}, fmt.Errorf("get balance for update: %w", err)
	}

	if staged, ok := mt.balances[userID]; ok {
		return staged, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return row.amount, nil
}

func (r *BalanceRepo) Update(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount domain.Money) error {
	mt, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	if _, ok := mt.holds(userID); !ok {
		return fmt.Errorf("update balance: row for %s is not locked by this transaction", userID)
	}
	mt.balances[userID] = amount
	return nil
}

func (r *BalanceRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.balances[userID]
	if !ok {
		return nil, nil
	}
	return &domain.Balance{UserID: userID, Amount: row.amount, UpdatedAt: row.updatedAt}, nil
}

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct{ s *Store }

func NewTransactionRepo(s *Store) *TransactionRepo { return &TransactionRepo{s: s} }

// Create stages t in tx. ID and CreatedAt are assigned immediately, as a
// database sequence and clock_timestamp() would.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := unwrapTx(tx)
	if err != nil {
		return err
	}
	if t.IdempotencyKey != "" {
		for _, staged := range mt.txns {
			if staged.UserID == t.UserID && staged.IdempotencyKey == t.IdempotencyKey {
				return errDuplicateKey
			}
		}
		r.s.mu.Lock()
		_, dup := r.s.idem[idemKey{t.UserID, t.IdempotencyKey}]
		r.s.mu.Unlock()
		if dup {
			return errDuplicateKey
		}
	}

	t.ID = r.s.nextID.Add(1)
	t.CreatedAt = r.s.now()
	mt.txns = append(mt.txns, *t)
	return nil
}

func (r *TransactionRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := r.s.txns[userID]
	n := min(limit, len(all))
	out := make([]domain.Transaction, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *TransactionRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, userID uuid.UUID, key string) (*domain.Transaction, error) {
	mt, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}
	for i := range mt.txns {
		if mt.txns[i].UserID == userID && mt.txns[i].IdempotencyKey == key {
			found := mt.txns[i]
			return &found, nil
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if found, ok := r.s.idem[idemKey{userID, key}]; ok {
		return &found, nil
	}
	return nil, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ s *Store }

func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{s: s} }

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *log)
	return nil
}

// AuditLogs returns a copy of every persisted audit entry.
func (r *AuditRepo) AuditLogs() []domain.AuditLog {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.AuditLog, len(r.s.audit))
	copy(out, r.s.audit)
	return out
}
