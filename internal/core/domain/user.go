package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. The ledger only ever sees its ID.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose
	CreatedAt    time.Time `json:"created_at"`
}

// Balance is the single running amount held by a user. Amount is never negative.
type Balance struct {
	UserID    uuid.UUID `json:"user_id"`
	Amount    Money     `json:"amount"`
	UpdatedAt time.Time `json:"updated_at"`
}

// History is the read-side view of a ledger: current balance plus recent
// transactions, newest first.
type History struct {
	Balance      Money         `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}
