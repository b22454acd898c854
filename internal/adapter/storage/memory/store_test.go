package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *Store
	balances *BalanceRepo
	txns     *TransactionRepo
}

func newFixture() fixture {
	s := NewStore()
	return fixture{store: s, balances: NewBalanceRepo(s), txns: NewTransactionRepo(s)}
}

// deposit runs one full unit of work and commits it.
func (f fixture) deposit(t *testing.T, userID uuid.UUID, amount, key string) *domain.Transaction {
	t.Helper()
	ctx := context.Background()

	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	require.NoError(t, f.balances.EnsureExists(ctx, tx, userID))
	current, err := f.balances.GetForUpdate(ctx, tx, userID)
	require.NoError(t, err)

	next := current.Add(domain.MustParseMoney(amount))
	require.NoError(t, f.balances.Update(ctx, tx, userID, next))

	txn := &domain.Transaction{
		UserID:         userID,
		Type:           domain.TransactionTypeDeposit,
		Amount:         domain.MustParseMoney(amount),
		BalanceAfter:   next,
		IdempotencyKey: key,
	}
	require.NoError(t, f.txns.Create(ctx, tx, txn))
	require.NoError(t, tx.Commit(ctx))
	return txn
}

func TestStore_CommitMakesWritesVisible(t *testing.T) {
	f := newFixture()
	userID := uuid.New()

	txn := f.deposit(t, userID, "5.00", "")
	assert.Equal(t, int64(1), txn.ID)
	assert.False(t, txn.CreatedAt.IsZero())

	b, err := f.balances.Get(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "5.00", b.Amount.String())

	list, err := f.txns.ListRecent(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "5.00", list[0].BalanceAfter.String())
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	ctx := context.Background()

	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.balances.EnsureExists(ctx, tx, userID))
	_, err = f.balances.GetForUpdate(ctx, tx, userID)
	require.NoError(t, err)
	require.NoError(t, f.balances.Update(ctx, tx, userID, domain.MustParseMoney("99")))
	require.NoError(t, f.txns.Create(ctx, tx, &domain.Transaction{
		UserID: userID, Type: domain.TransactionTypeDeposit,
		Amount: domain.MustParseMoney("99"), BalanceAfter: domain.MustParseMoney("99"),
	}))
	require.NoError(t, tx.Rollback(ctx))

	b, err := f.balances.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.Amount.IsZero())

	list, err := f.txns.ListRecent(ctx, userID, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, tx.Commit(ctx), pgx.ErrTxClosed)
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
}

func TestStore_GetForUpdateBlocksSameUser(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	ctx := context.Background()

	holder, err := f.store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.balances.EnsureExists(ctx, holder, userID))
	_, err = f.balances.GetForUpdate(ctx, holder, userID)
	require.NoError(t, err)
	require.NoError(t, f.balances.Update(ctx, holder, userID, domain.MustParseMoney("7")))

	acquired := make(chan domain.Money, 1)
	go func() {
		waiter, _ := f.store.Begin(ctx)
		defer waiter.Rollback(ctx) //nolint:errcheck
		m, err := f.balances.GetForUpdate(ctx, waiter, userID)
		if err == nil {
			acquired <- m
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction acquired a held row lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, holder.Commit(ctx))

	select {
	case m := <-acquired:
		assert.Equal(t, "7.00", m.String(), "waiter must read the committed value")
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock after commit")
	}
}

func TestStore_DifferentUsersDoNotBlock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	txA, _ := f.store.Begin(ctx)
	defer txA.Rollback(ctx) //nolint:errcheck
	require.NoError(t, f.balances.EnsureExists(ctx, txA, alice))
	_, err := f.balances.GetForUpdate(ctx, txA, alice)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.deposit(t, bob, "1.00", "")
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on one user blocked another user")
	}
}

func TestStore_LockWaitHonoursContext(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	ctx := context.Background()

	holder, _ := f.store.Begin(ctx)
	defer holder.Rollback(ctx) //nolint:errcheck
	require.NoError(t, f.balances.EnsureExists(ctx, holder, userID))
	_, err := f.balances.GetForUpdate(ctx, holder, userID)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	waiter, _ := f.store.Begin(ctx)
	_, err = f.balances.GetForUpdate(waitCtx, waiter, userID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.NoError(t, waiter.Rollback(ctx))
}

func TestStore_CommitAfterDeadlineWritesNothing(t *testing.T) {
	f := newFixture()
	userID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	tx, _ := f.store.Begin(ctx)
	require.NoError(t, f.balances.EnsureExists(ctx, tx, userID))
	_, err := f.balances.GetForUpdate(ctx, tx, userID)
	require.NoError(t, err)
	require.NoError(t, f.balances.Update(ctx, tx, userID, domain.MustParseMoney("3")))
	cancel()

	assert.ErrorIs(t, tx.Commit(ctx), context.Canceled)

	b, _ := f.balances.Get(context.Background(), userID)
	assert.True(t, b.Amount.IsZero())

	// the lock was released
	f.deposit(t, userID, "1.00", "")
}

func TestStore_UpdateRequiresLock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, _ := f.store.Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck

	err := f.balances.Update(ctx, tx, uuid.New(), domain.MustParseMoney("1"))
	assert.Error(t, err)
}

func TestStore_GetForUpdateWithoutRow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, _ := f.store.Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err := f.balances.GetForUpdate(ctx, tx, uuid.New())
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestStore_IdempotencyKeyIsUniquePerUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	first := f.deposit(t, alice, "5.00", "k-1")
	f.deposit(t, bob, "5.00", "k-1")

	tx, _ := f.store.Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck

	found, err := f.txns.GetByIdempotencyKey(ctx, tx, alice, "k-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	missing, err := f.txns.GetByIdempotencyKey(ctx, tx, alice, "k-2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = f.txns.Create(ctx, tx, &domain.Transaction{
		UserID: alice, Type: domain.TransactionTypeDeposit, IdempotencyKey: "k-1",
		Amount: domain.MustParseMoney("1"), BalanceAfter: domain.MustParseMoney("6"),
	})
	assert.ErrorIs(t, err, ports.ErrDuplicate)
}

func TestStore_ListRecentNewestFirstWithLimit(t *testing.T) {
	f := newFixture()
	userID := uuid.New()
	for i := 0; i < 5; i++ {
		f.deposit(t, userID, "1.00", "")
	}

	list, err := f.txns.ListRecent(context.Background(), userID, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "5.00", list[0].BalanceAfter.String())
	assert.Equal(t, "4.00", list[1].BalanceAfter.String())
	assert.Equal(t, "3.00", list[2].BalanceAfter.String())
	assert.Greater(t, list[0].ID, list[1].ID)
}

func TestStore_RawSQLUnsupported(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, _ := f.store.Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err := tx.Exec(ctx, "SELECT 1")
	assert.Error(t, err)
	var n int
	assert.Error(t, tx.QueryRow(ctx, "SELECT 1").Scan(&n))
}

func TestUserRepo(t *testing.T) {
	s := NewStore()
	repo := NewUserRepo(s)
	ctx := context.Background()

	u := &domain.User{ID: uuid.New(), Username: "alice", PasswordHash: "h"}
	require.NoError(t, repo.Create(ctx, u))
	assert.ErrorIs(t, repo.Create(ctx, &domain.User{ID: uuid.New(), Username: "alice"}), ports.ErrDuplicate)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	missing, err := repo.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAuditRepo(t *testing.T) {
	repo := NewAuditRepo(NewStore())
	require.NoError(t, repo.Create(context.Background(), &domain.AuditLog{ID: uuid.New(), Action: domain.AuditActionLogin}))

	logs := repo.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditActionLogin, logs[0].Action)
}
