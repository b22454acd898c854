package service

import (
	"context"
	"io"
	"testing"

	"balance-ledger/internal/core/domain"
	"balance-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// mockTx implements pgx.Tx for testing.
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}

// moneyMatcher compares Money by value; decimal internals are not DeepEqual-stable.
type moneyMatcher struct {
	want domain.Money
}

func moneyEq(s string) gomock.Matcher {
	return moneyMatcher{want: domain.MustParseMoney(s)}
}

func (m moneyMatcher) Matches(x any) bool {
	got, ok := x.(domain.Money)
	return ok && got.Equal(m.want)
}

func (m moneyMatcher) String() string {
	return "equals money " + m.want.String()
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
