package service

import (
	"context"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HistoryServiceImpl implements ports.HistoryService. It never locks.
type HistoryServiceImpl struct {
	balanceRepo ports.BalanceRepository
	txRepo      ports.TransactionRepository
	maxLimit    int
	log         zerolog.Logger
}

// NewHistoryService creates a new HistoryServiceImpl. Limits above maxLimit are clamped.
func NewHistoryService(
	balanceRepo ports.BalanceRepository,
	txRepo ports.TransactionRepository,
	maxLimit int,
	log zerolog.Logger,
) *HistoryServiceImpl {
	return &HistoryServiceImpl{
		balanceRepo: balanceRepo,
		txRepo:      txRepo,
		maxLimit:    maxLimit,
		log:         log,
	}
}

// History returns the current balance and up to limit transactions, newest first.
// A user without a balance row has a zero balance and no transactions.
func (s *HistoryServiceImpl) History(ctx context.Context, userID uuid.UUID, limit int) (*domain.History, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrInvalidRequest("user id is required")
	}
	if limit <= 0 {
		return nil, apperror.ErrInvalidRequest("limit must be a positive integer")
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}

	balance, err := s.balanceRepo.Get(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to read balance")
		return nil, storageError("get balance", err)
	}

	amount := domain.ZeroMoney()
	if balance != nil {
		amount = balance.Amount
	}

	txns, err := s.txRepo.ListRecent(ctx, userID, limit)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list transactions")
		return nil, storageError("list transactions", err)
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}

	return &domain.History{Balance: amount, Transactions: txns}, nil
}
