package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"balance-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func beginMockTx(t *testing.T, mock pgxmock.PgxPoolIface) pgx.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func TestBalanceRepo_EnsureExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	tx := beginMockTx(t, mock)

	mock.ExpectExec("INSERT INTO balances .+ ON CONFLICT \\(user_id\\) DO NOTHING").
		WithArgs(userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, repo.EnsureExists(context.Background(), tx, userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("SELECT amount::text FROM balances WHERE user_id = .+ FOR UPDATE").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"amount"}).AddRow("125.50"))

	amount, err := repo.GetForUpdate(context.Background(), tx, userID)
	require.NoError(t, err)
	assert.Equal(t, "125.50", amount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_GetForUpdate_LockError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	tx := beginMockTx(t, mock)

	lockErr := errors.New("canceling statement due to lock timeout")
	mock.ExpectQuery("SELECT amount::text FROM balances").
		WithArgs(userID).
		WillReturnError(lockErr)

	_, err = repo.GetForUpdate(context.Background(), tx, userID)
	require.Error(t, err)
	assert.ErrorIs(t, err, lockErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	tx := beginMockTx(t, mock)

	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs("10.00", userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Update(context.Background(), tx, userID, domain.MustParseMoney("10"))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	tx := beginMockTx(t, mock)

	mock.ExpectExec("UPDATE balances SET amount").
		WithArgs("10.00", userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Update(context.Background(), tx, userID, domain.MustParseMoney("10.00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "balance not found")
}

func TestBalanceRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()
	updatedAt := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT user_id, amount::text, updated_at FROM balances").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "amount", "updated_at"}).
			AddRow(userID, "0.00", updatedAt))

	b, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, userID, b.UserID)
	assert.Equal(t, "0.00", b.Amount.String())
	assert.Equal(t, updatedAt, b.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepo_Get_NoRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBalanceRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT user_id, amount::text, updated_at FROM balances").
		WithArgs(userID).
		WillReturnError(pgx.ErrNoRows)

	b, err := repo.Get(context.Background(), userID)
	assert.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}
