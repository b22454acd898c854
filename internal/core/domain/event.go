package domain

import "time"

// LedgerEvent is published after a transaction commits.
type LedgerEvent struct {
	TransactionID int64           `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        Money           `json:"amount"`
	BalanceAfter  Money           `json:"balance_after"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewLedgerEvent(tx *Transaction) LedgerEvent {
	return LedgerEvent{
		TransactionID: tx.ID,
		UserID:        tx.UserID.String(),
		Type:          tx.Type,
		Amount:        tx.Amount,
		BalanceAfter:  tx.BalanceAfter,
		OccurredAt:    tx.CreatedAt,
	}
}
