package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService: the only writer of
// balances and transactions.
type LedgerServiceImpl struct {
	balanceRepo ports.BalanceRepository
	txRepo      ports.TransactionRepository
	transactor  ports.DBTransactor
	idempCache  ports.IdempotencyCache // optional
	publisher   ports.EventPublisher   // optional
	lockTimeout time.Duration
	idempTTL    time.Duration
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. idempCache and publisher may be nil.
func NewLedgerService(
	balanceRepo ports.BalanceRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	publisher ports.EventPublisher,
	lockTimeout time.Duration,
	idempTTL time.Duration,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		balanceRepo: balanceRepo,
		txRepo:      txRepo,
		transactor:  transactor,
		idempCache:  idempCache,
		publisher:   publisher,
		lockTimeout: lockTimeout,
		idempTTL:    idempTTL,
		log:         log,
	}
}

// Apply performs one deposit or withdrawal as a single atomic unit:
// ensure row -> lock row -> compute -> update balance + append transaction -> commit.
func (s *LedgerServiceImpl) Apply(ctx context.Context, req ports.ApplyRequest) (*ports.ApplyResult, error) {
	if err := validateApply(req); err != nil {
		return nil, err
	}

	var cacheKey string
	if req.IdempotencyKey != "" {
		cacheKey = idempotencyCacheKey(req.UserID, req.IdempotencyKey)

		// Layer 1: Redis idempotency check
		if cached := s.cachedResult(ctx, cacheKey); cached != nil {
			if !sameRequest(&cached.Transaction, req) {
				return nil, apperror.ErrIdempotencyConflict()
			}
			cached.Transaction.IdempotencyKey = req.IdempotencyKey
			return cached, nil
		}
	}

	unitCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	result, err := s.applyLocked(unitCtx, req)
	if err != nil {
		s.logFailure(req, err)
		return nil, err
	}

	if result.Replayed {
		s.log.Info().
			Int64("tx_id", result.Transaction.ID).
			Str("user_id", req.UserID.String()).
			Msg("idempotent replay")
		s.cacheResult(ctx, cacheKey, result)
		return result, nil
	}

	s.log.Info().
		Int64("tx_id", result.Transaction.ID).
		Str("user_id", req.UserID.String()).
		Str("type", string(req.Type)).
		Str("amount", req.Amount.String()).
		Str("balance_after", result.Balance.String()).
		Msg("ledger operation committed")

	// Post-commit side effects are best-effort
	s.cacheResult(ctx, cacheKey, result)
	s.publish(ctx, &result.Transaction)

	return result, nil
}

func (s *LedgerServiceImpl) applyLocked(ctx context.Context, req ports.ApplyRequest) (*ports.ApplyResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError("begin tx", err)
	}
	// Rollback must still reach the database after the unit's deadline fired.
	defer dbTx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	if err := s.balanceRepo.EnsureExists(ctx, dbTx, req.UserID); err != nil {
		return nil, storageError("ensure balance", err)
	}

	current, err := s.balanceRepo.GetForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, storageError("lock balance", err)
	}

	// Layer 2: DB idempotency check, under the row lock so retries serialise
	if req.IdempotencyKey != "" {
		existing, err := s.txRepo.GetByIdempotencyKey(ctx, dbTx, req.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, storageError("idempotency lookup", err)
		}
		if existing != nil {
			if !sameRequest(existing, req) {
				return nil, apperror.ErrIdempotencyConflict()
			}
			return &ports.ApplyResult{Transaction: *existing, Balance: existing.BalanceAfter, Replayed: true}, nil
		}
	}

	next, err := req.Type.Apply(current, req.Amount)
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return nil, apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrBalanceCeiling):
		return nil, apperror.ErrInvalidRequest(fmt.Sprintf("balance would exceed %s", domain.MaxMoney))
	case err != nil:
		return nil, apperror.ErrInvalidRequest(err.Error())
	}

	if err := s.balanceRepo.Update(ctx, dbTx, req.UserID, next); err != nil {
		return nil, storageError("update balance", err)
	}

	txn := &domain.Transaction{
		UserID:         req.UserID,
		Type:           req.Type,
		Amount:         req.Amount,
		BalanceAfter:   next,
		IdempotencyKey: req.IdempotencyKey,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, storageError("create transaction", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit tx", err)
	}

	return &ports.ApplyResult{Transaction: *txn, Balance: next}, nil
}

func validateApply(req ports.ApplyRequest) error {
	if req.UserID == uuid.Nil {
		return apperror.ErrInvalidRequest("user id is required")
	}
	if !req.Type.IsValid() {
		return apperror.ErrInvalidRequest("operation must be 'deposit' or 'withdraw'")
	}
	if !req.Amount.IsPositive() {
		return apperror.ErrInvalidAmount(fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidAmount))
	}
	if len(req.IdempotencyKey) > domain.MaxIdempotencyKeyLen {
		return apperror.ErrInvalidRequest("idempotency key is too long")
	}
	return nil
}

func sameRequest(t *domain.Transaction, req ports.ApplyRequest) bool {
	return t.Type == req.Type && t.Amount.Equal(req.Amount)
}

func idempotencyCacheKey(userID uuid.UUID, key string) string {
	return "ledger:" + userID.String() + ":" + key
}

func (s *LedgerServiceImpl) cachedResult(ctx context.Context, key string) *ports.ApplyResult {
	if s.idempCache == nil {
		return nil
	}
	raw, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if raw == nil {
		return nil
	}

	var result ports.ApplyResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency entry")
		return nil
	}
	result.Replayed = true
	return &result
}

func (s *LedgerServiceImpl) cacheResult(ctx context.Context, key string, result *ports.ApplyResult) {
	if s.idempCache == nil || key == "" {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to encode idempotency entry")
		return
	}
	if err := s.idempCache.Set(ctx, key, raw, s.idempTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}

func (s *LedgerServiceImpl) publish(ctx context.Context, txn *domain.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewLedgerEvent(txn)); err != nil {
		s.log.Warn().Err(err).Int64("tx_id", txn.ID).Msg("failed to publish ledger event")
	}
}

func (s *LedgerServiceImpl) logFailure(req ports.ApplyRequest, err error) {
	event := s.log.Error()
	switch apperror.KindOf(err) {
	case apperror.KindInsufficientFunds, apperror.KindInvalidRequest, apperror.KindConflict:
		event = s.log.Info()
	}
	event.Err(err).
		Str("user_id", req.UserID.String()).
		Str("type", string(req.Type)).
		Str("amount", req.Amount.String()).
		Msg("ledger operation rejected")
}
