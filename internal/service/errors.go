package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"balance-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL codes for a statement that gave up waiting.
const (
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
)

// pgIntegrityClass prefixes every integrity constraint violation (23xxx).
const pgIntegrityClass = "23"

// storageError classifies a storage-layer failure. Lock waits that ran out of
// time become Timeout. Constraint violations become InvalidRequest and are
// never retryable. Everything else is StorageUnavailable. AppErrors pass through.
func storageError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	wrapped := fmt.Errorf("%s: %w", op, err)
	if isTimeout(err) {
		return apperror.ErrLockTimeout(wrapped)
	}
	if isConstraintViolation(err) {
		return apperror.ErrConstraintViolation(wrapped)
	}
	return apperror.ErrStorageUnavailable(wrapped)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable || pgErr.Code == pgQueryCanceled
	}
	return false
}

func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, pgIntegrityClass)
}
