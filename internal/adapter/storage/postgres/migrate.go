package postgres

import (
	"context"
	"fmt"
)

// migrationLockID serialises schema provisioning across processes starting together.
const migrationLockID int64 = 7_240_113

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS balances (
		user_id    UUID PRIMARY KEY REFERENCES users(id),
		amount     NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (amount >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// created_at uses clock_timestamp() so it is taken after the balance row
	// lock is held; per-user creation order then matches commit order.
	`CREATE TABLE IF NOT EXISTS transactions (
		id              BIGSERIAL PRIMARY KEY,
		user_id         UUID NOT NULL REFERENCES users(id),
		type            TEXT NOT NULL CHECK (type IN ('deposit', 'withdraw')),
		amount          NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
		balance_after   NUMERIC(12, 2) NOT NULL CHECK (balance_after >= 0),
		idempotency_key TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_created
		ON transactions (user_id, created_at DESC, id DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_user_idempotency
		ON transactions (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id            UUID PRIMARY KEY,
		user_id       UUID,
		action        TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id   TEXT,
		details       TEXT,
		ip_address    TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate provisions the schema. It is idempotent and runs once at startup.
func Migrate(ctx context.Context, pool Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}

	for i, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
