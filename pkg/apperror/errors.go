package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes into the categories callers act on.
type Kind string

const (
	KindInvalidRequest     Kind = "INVALID_REQUEST"
	KindInsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindConflict           Kind = "CONFLICT"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindTimeout            Kind = "TIMEOUT"
	KindInternal           Kind = "INTERNAL"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Kind       Kind   `json:"-"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may safely repeat the request.
// Only storage-layer failures qualify: the atomic unit either fully
// committed or fully did not.
func (e *AppError) Retryable() bool {
	return e.Kind == KindStorageUnavailable || e.Kind == KindTimeout
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kind,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kind,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf returns the Kind of err, or KindInternal when err is not an AppError.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// ---- Request validation (REQ) ----

func ErrInvalidRequest(message string) *AppError {
	return New(KindInvalidRequest, "REQ_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount(err error) *AppError {
	return Wrap(KindInvalidRequest, "REQ_002", "Invalid amount", http.StatusBadRequest, err)
}

// ErrConstraintViolation means storage rejected the write as inconsistent
// with existing data, e.g. a balance for a user that does not exist.
func ErrConstraintViolation(err error) *AppError {
	return Wrap(KindInvalidRequest, "REQ_001", "Request conflicts with stored data", http.StatusBadRequest, err)
}

// ErrIdempotencyConflict means an Idempotency-Key was reused for a different operation or amount.
func ErrIdempotencyConflict() *AppError {
	return New(KindConflict, "REQ_003", "Idempotency key reused with a different request", http.StatusConflict)
}

func ErrBodyTooLarge() *AppError {
	return New(KindInvalidRequest, "REQ_004", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Ledger business rules (LED) ----

func ErrInsufficientFunds() *AppError {
	return New(KindInsufficientFunds, "LED_001", "Insufficient funds", http.StatusUnprocessableEntity)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(KindUnauthenticated, "AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameTaken() *AppError {
	return New(KindConflict, "AUTH_002", "Username already taken", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New(KindUnauthenticated, "AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimited, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrStorageUnavailable(err error) *AppError {
	return Wrap(KindStorageUnavailable, "SYS_001", "Storage unavailable", http.StatusServiceUnavailable, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap(KindTimeout, "SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an unexpected failure that is not a storage fault.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "SYS_000", "Internal server error", http.StatusInternalServerError, err)
}
