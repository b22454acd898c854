package postgres

import (
	"context"
	"errors"
	"time"
)

const healthProbeTimeout = 2 * time.Second

var errSchemaMissing = errors.New("ledger schema is not provisioned")

// HealthCheck reports whether PostgreSQL is reachable and the ledger tables exist.
type HealthCheck struct {
	pool Pool
}

// NewHealthCheck creates a PostgreSQL health checker.
func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	var provisioned bool
	err := h.pool.QueryRow(ctx,
		`SELECT to_regclass('public.balances') IS NOT NULL AND to_regclass('public.transactions') IS NOT NULL`,
	).Scan(&provisioned)
	if err != nil {
		return err
	}
	if !provisioned {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgres"
}
