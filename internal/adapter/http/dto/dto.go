package dto

import (
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
)

// SignupRequest is the request body for user signup.
type SignupRequest struct {
	Username string `json:"username" binding:"required,username"`
	Password string `json:"password" binding:"required,min=6,max=72" sanitize:"-"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=32"`
	Password string `json:"password" binding:"required,max=72" sanitize:"-"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
}

func NewAuthResponse(r *ports.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     r.Token,
		UserID:    r.UserID.String(),
		Username:  r.Username,
		ExpiresAt: r.ExpiresAt.Unix(),
	}
}

// ApplyRequest is the request body for a deposit or withdrawal.
// "operation" wins over "action" when both are sent.
type ApplyRequest struct {
	Action    string        `json:"action"`
	Operation string        `json:"operation"`
	Amount    *domain.Money `json:"amount" binding:"required"`
}

// Kind returns the requested operation name.
func (r ApplyRequest) Kind() string {
	if r.Operation != "" {
		return r.Operation
	}
	return r.Action
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID           int64        `json:"id"`
	Type         string       `json:"type"`
	Amount       domain.Money `json:"amount"`
	BalanceAfter domain.Money `json:"balance_after"`
	CreatedAt    string       `json:"created_at"`
}

func NewTransactionResponse(t domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID,
		Type:         string(t.Type),
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		CreatedAt:    t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ApplyResponse is the response body for a committed operation.
type ApplyResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Balance     domain.Money        `json:"balance"`
}

func NewApplyResponse(r *ports.ApplyResult) ApplyResponse {
	return ApplyResponse{
		Transaction: NewTransactionResponse(r.Transaction),
		Balance:     r.Balance,
	}
}

// HistoryResponse is the current balance and recent transactions, newest first.
type HistoryResponse struct {
	Balance      domain.Money          `json:"balance"`
	Transactions []TransactionResponse `json:"transactions"`
}

func NewHistoryResponse(h *domain.History) HistoryResponse {
	items := make([]TransactionResponse, 0, len(h.Transactions))
	for _, t := range h.Transactions {
		items = append(items, NewTransactionResponse(t))
	}
	return HistoryResponse{Balance: h.Balance, Transactions: items}
}
