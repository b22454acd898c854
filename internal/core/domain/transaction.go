package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrBalanceCeiling         = errors.New("balance would exceed maximum")
	ErrUnknownTransactionType = errors.New("unknown transaction type")
)

// TransactionType is the kind of balance mutation.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
)

// ParseTransactionType accepts "deposit" or "withdraw", ignoring case and surrounding space.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrUnknownTransactionType
	}
	return t, nil
}

func (t TransactionType) IsValid() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdraw
}

// Apply computes the balance after applying amount of this type to balance.
// A withdrawal that would go below zero returns ErrInsufficientFunds and a
// deposit that would pass MaxMoney returns ErrBalanceCeiling.
func (t TransactionType) Apply(balance, amount Money) (Money, error) {
	switch t {
	case TransactionTypeDeposit:
		next := balance.Add(amount)
		if next.GreaterThan(MaxMoney) {
			return Money{}, ErrBalanceCeiling
		}
		return next, nil
	case TransactionTypeWithdraw:
		next := balance.Sub(amount)
		if next.IsNegative() {
			return Money{}, ErrInsufficientFunds
		}
		return next, nil
	default:
		return Money{}, ErrUnknownTransactionType
	}
}

// MaxIdempotencyKeyLen bounds the client-supplied idempotency key.
const MaxIdempotencyKeyLen = 255

// Transaction is an immutable ledger entry. It is written once, in the same
// atomic unit as the balance update it reflects.
type Transaction struct {
	ID             int64           `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Type           TransactionType `json:"type"`
	Amount         Money           `json:"amount"`
	BalanceAfter   Money           `json:"balance_after"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
}
