package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Ledger errors
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists       ErrorCode = "ALREADY_EXISTS"
	ErrCodeInvalidAmount       ErrorCode = "INVALID_AMOUNT"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeNoTransactions      ErrorCode = "NO_TRANSACTIONS"

	// Market data errors
	ErrCodePriceUnavailable ErrorCode = "PRICE_UNAVAILABLE"
	ErrCodeDataUnavailable  ErrorCode = "DATA_UNAVAILABLE"
	ErrCodeNoHoldings       ErrorCode = "NO_HOLDINGS"
	ErrCodeUpstream         ErrorCode = "UPSTREAM_ERROR"

	// Request errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError is the typed failure returned across service boundaries
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Err        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so sentinels work with errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is checks
var (
	ErrNotFound            = &AppError{Code: ErrCodeNotFound}
	ErrAlreadyExists       = &AppError{Code: ErrCodeAlreadyExists}
	ErrInvalidAmount       = &AppError{Code: ErrCodeInvalidAmount}
	ErrInsufficientBalance = &AppError{Code: ErrCodeInsufficientBalance}
	ErrNoTransactions      = &AppError{Code: ErrCodeNoTransactions}
	ErrPriceUnavailable    = &AppError{Code: ErrCodePriceUnavailable}
	ErrDataUnavailable     = &AppError{Code: ErrCodeDataUnavailable}
	ErrNoHoldings          = &AppError{Code: ErrCodeNoHoldings}
	ErrUpstream            = &AppError{Code: ErrCodeUpstream}
	ErrValidation          = &AppError{Code: ErrCodeValidation}
)

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: getHTTPStatusCode(code),
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	e := New(code, message)
	e.Err = err
	return e
}

// CodeOf extracts the code of the first AppError in the chain
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Message returns the user-facing message of err
func Message(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// getHTTPStatusCode maps error codes to HTTP status codes. Domain failures are
// client-visible 400s; only transport-level concerns get their own status.
func getHTTPStatusCode(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Common error constructors

func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

func AlreadyExists(message string) *AppError {
	return New(ErrCodeAlreadyExists, message)
}

func InvalidAmount(message string) *AppError {
	return New(ErrCodeInvalidAmount, message)
}

func InsufficientBalance(message string) *AppError {
	return New(ErrCodeInsufficientBalance, message)
}

func NoTransactions(message string) *AppError {
	return New(ErrCodeNoTransactions, message)
}

func PriceUnavailable(symbol string) *AppError {
	return New(ErrCodePriceUnavailable, fmt.Sprintf("could not get current price for %s", symbol))
}

func DataUnavailable(message string) *AppError {
	return New(ErrCodeDataUnavailable, message)
}

func NoHoldings() *AppError {
	return New(ErrCodeNoHoldings, "no holdings provided")
}

func Upstream(service string, err error) *AppError {
	return Wrap(err, ErrCodeUpstream, fmt.Sprintf("%s request failed", service))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}
