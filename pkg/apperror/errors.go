package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
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

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

const (
	CodeInvalidAmount       = "LED_001"
	CodeInsufficientBalance = "LED_002"
	CodeDuplicateOperation  = "LED_003"
	CodeAlreadySubmitted    = "LED_004"
	CodeNotFound            = "LED_005"
	CodeInvalidTransition   = "LED_006"
	CodeWithdrawFailed      = "LED_007"
	CodeUnsupportedProvider = "LED_008"
	CodeProviderFailed      = "LED_009"
	CodeInternal            = "SYS_001"
	CodeInvariantViolation  = "SYS_002"
	CodeInvalidToken        = "AUTH_001"
	CodeRateLimited         = "RATE_001"
)

// ---- Ledger (LED) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrInsufficientBalance() *AppError {
	return New(CodeInsufficientBalance, "Insufficient balance", http.StatusPaymentRequired)
}

// ErrDuplicateOperation means the order id was already applied; callers
// should fetch the existing transfer instead of failing hard.
func ErrDuplicateOperation() *AppError {
	return New(CodeDuplicateOperation, "Operation already applied", http.StatusConflict)
}

func ErrAlreadySubmitted() *AppError {
	return New(CodeAlreadySubmitted, "Request already submitted, please wait", http.StatusTooManyRequests)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("Cannot move transfer from %s to %s", from, to), http.StatusConflict)
}

func ErrWithdrawFailed(err error) *AppError {
	return Wrap(CodeWithdrawFailed, "Withdrawal could not be completed, pending manual review", http.StatusBadGateway, err)
}

func ErrUnsupportedProvider(name string) *AppError {
	return New(CodeUnsupportedProvider, fmt.Sprintf("Unsupported payment provider %q", name), http.StatusBadRequest)
}

// ErrProviderFailed is a provider call that failed before any money moved.
func ErrProviderFailed(err error) *AppError {
	return Wrap(CodeProviderFailed, "Payment provider request failed", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Too many requests", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// ErrInvariantViolation is fatal: the enclosing transaction must abort.
func ErrInvariantViolation(err error) *AppError {
	return Wrap(CodeInvariantViolation, "Ledger invariant violated", http.StatusInternalServerError, err)
}

// Validation returns a LED_001-style validation error.
func Validation(message string) *AppError {
	return New(CodeInvalidAmount, message, http.StatusBadRequest)
}
