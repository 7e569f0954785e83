package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that branch on outcome rather than code.
type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindNotFound          Kind = "NOT_FOUND"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindAccountNotEmpty   Kind = "ACCOUNT_NOT_EMPTY"
	KindSelfTransfer      Kind = "SELF_TRANSFER"
	KindConflict          Kind = "CONFLICT"
	KindStorageFault      Kind = "STORAGE_FAULT"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindInternal          Kind = "INTERNAL"
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

// Retryable reports whether the operation may be retried as a whole.
func (e *AppError) Retryable() bool {
	return e.Kind == KindStorageFault
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

// KindOf returns the Kind of the first AppError in err's chain, KindInternal
// for any other non-nil error and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind is shorthand for KindOf(err) == kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether err is a storage fault after which the whole
// operation can be retried.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Retryable()
}

// ---- Ledger (LED) ----

// Validation returns a generic input validation error.
func Validation(message string) *AppError {
	return New(KindInvalidInput, "LED_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount(message string) *AppError {
	return New(KindInvalidInput, "LED_002", message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New(KindNotFound, "LED_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInsufficientFunds() *AppError {
	return New(KindInsufficientFunds, "LED_004", "Insufficient funds", http.StatusUnprocessableEntity)
}

func ErrAccountNotEmpty() *AppError {
	return New(KindAccountNotEmpty, "LED_005", "Account balance must be zero before deletion", http.StatusConflict)
}

func ErrSelfTransfer() *AppError {
	return New(KindSelfTransfer, "LED_006", "Cannot transfer to the same account", http.StatusBadRequest)
}

func ErrAccountNameTaken(name string) *AppError {
	return New(KindConflict, "LED_007", fmt.Sprintf("Account with name '%s' already exists", name), http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(KindUnauthorized, "AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInsufficientScope(scope string) *AppError {
	return New(KindForbidden, "AUTH_002", fmt.Sprintf("Token lacks the %s scope", scope), http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimited, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Requests (REQ) ----

func ErrRequestInFlight() *AppError {
	return New(KindConflict, "REQ_001", "A request with this idempotency key is still being processed", http.StatusConflict)
}

func ErrBodyTooLarge(limit int64) *AppError {
	return New(KindInvalidInput, "REQ_002", fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

func ErrIdempotencyMismatch() *AppError {
	return New(KindConflict, "REQ_003", "Idempotency key was already used with a different request body", http.StatusUnprocessableEntity)
}

// ---- System & Infrastructure (SYS) ----

// ErrStorage wraps an I/O or commit failure. The unit of work has already
// been rolled back when this is returned.
func ErrStorage(err error) *AppError {
	return Wrap(KindStorageFault, "SYS_001", "Storage failure", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap(KindStorageFault, "SYS_002", "Ledger is busy, writer lock not acquired", http.StatusServiceUnavailable, err)
}

// InternalError wraps an unexpected error that is not a storage fault.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "SYS_000", "Internal server error", http.StatusInternalServerError, err)
}
