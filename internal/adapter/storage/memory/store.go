package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"balance-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errUnsupported = errors.New("memory store: raw SQL is not supported")

// Store is a single-process Ledger Store. It keeps the locking contract of the
// PostgreSQL store: a balance row is held exclusively from GetForUpdate until
// the enclosing Tx ends, writes become visible only on Commit, and Rollback
// discards them.
type Store struct {
	mu       sync.Mutex
	users    map[string]domain.User
	balances map[uuid.UUID]*balanceRow
	txns     map[uuid.UUID][]domain.Transaction // commit order
	idem     map[idemKey]domain.Transaction
	audit    []domain.AuditLog

	nextID atomic.Int64
	now    func() time.Time
}

type balanceRow struct {
	lock      chan struct{} // one slot; holding it is holding the row lock
	amount    domain.Money
	updatedAt time.Time
}

type idemKey struct {
	userID uuid.UUID
	key    string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		balances: make(map[uuid.UUID]*balanceRow),
		txns:     make(map[uuid.UUID][]domain.Transaction),
		idem:     make(map[idemKey]domain.Transaction),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: s, balances: make(map[uuid.UUID]domain.Money)}, nil
}

// ensureRow inserts a zero balance row if absent. The row is visible
// immediately; a zero row reads the same as no row.
func (s *Store) ensureRow(userID uuid.UUID) *balanceRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.balances[userID]
	if !ok {
		row = &balanceRow{lock: make(chan struct{}, 1), updatedAt: s.now()}
		s.balances[userID] = row
	}
	return row
}

func (s *Store) row(userID uuid.UUID) (*balanceRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.balances[userID]
	return row, ok
}

// Tx is the memory store's unit of work. It satisfies pgx.Tx so services
// written against ports.DBTransactor run unchanged; raw SQL methods fail.
type Tx struct {
	store    *Store
	held     []*balanceRow
	heldBy   map[uuid.UUID]*balanceRow
	balances map[uuid.UUID]domain.Money
	txns     []domain.Transaction
	closed   bool
}

func (t *Tx) holds(userID uuid.UUID) (*balanceRow, bool) {
	row, ok := t.heldBy[userID]
	return row, ok
}

// lock blocks until the row is free or ctx ends.
func (t *Tx) lock(ctx context.Context, userID uuid.UUID, row *balanceRow) error {
	if _, ok := t.holds(userID); ok {
		return nil
	}
	select {
	case row.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if t.heldBy == nil {
		t.heldBy = make(map[uuid.UUID]*balanceRow)
	}
	t.held = append(t.held, row)
	t.heldBy[userID] = row
	return nil
}

func (t *Tx) release() {
	for _, row := range t.held {
		<-row.lock
	}
	t.held = nil
	t.heldBy = nil
	t.closed = true
}

// Commit publishes staged writes atomically and releases row locks.
func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		t.release()
		return err
	}

	s := t.store
	s.mu.Lock()
	for _, txn := range t.txns {
		if txn.IdempotencyKey == "" {
			continue
		}
		if _, dup := s.idem[idemKey{txn.UserID, txn.IdempotencyKey}]; dup {
			s.mu.Unlock()
			t.release()
			return errDuplicateKey
		}
	}
	now := s.now()
	for userID, amount := range t.balances {
		row := s.balances[userID]
		row.amount = amount
		row.updatedAt = now
	}
	for _, txn := range t.txns {
		s.txns[txn.UserID] = append(s.txns[txn.UserID], txn)
		if txn.IdempotencyKey != "" {
			s.idem[idemKey{txn.UserID, txn.IdempotencyKey}] = txn
		}
	}
	s.mu.Unlock()

	t.release()
	return nil
}

// Rollback discards staged writes and releases row locks.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errUnsupported }

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errUnsupported
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errUnsupported
}

func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errUnsupported
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errUnsupported
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return errRow{}
}

func (t *Tx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errUnsupported }
