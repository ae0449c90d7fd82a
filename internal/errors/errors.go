// Package errors defines the engine's error taxonomy. Every failure carries a
// fixed numeric Kind in addition to the category and code used for logging.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents rejected input
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents caller restriction failures
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryNotFound represents missing records
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryState represents operations refused by current system state
	CategoryState ErrorCategory = "state"
	// CategorySystem represents internal errors
	CategorySystem ErrorCategory = "system"
	// CategoryDatabase represents persistent store errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents Redis store errors
	CategoryCache ErrorCategory = "cache"
)

// Kind is the fixed numeric code of an engine failure
type Kind uint32

const (
	KindUnknown             Kind = 0
	KindOwnerOnly           Kind = 100
	KindNotFound            Kind = 101
	KindUnauthorized        Kind = 102
	KindInvalidPercentage   Kind = 103
	KindInsufficientBalance Kind = 104
	KindInvalidToken        Kind = 105
	KindPortfolioNotFound   Kind = 106
	KindSlippageExceeded    Kind = 107
	KindInvalidAmount       Kind = 108
	KindDeadlineExceeded    Kind = 109
	KindRebalanceNotNeeded  Kind = 110
	KindSystemPaused        Kind = 111
)

var kindCodes = map[Kind]string{
	KindOwnerOnly:           "OWNER_ONLY",
	KindNotFound:            "NOT_FOUND",
	KindUnauthorized:        "UNAUTHORIZED",
	KindInvalidPercentage:   "INVALID_PERCENTAGE",
	KindInsufficientBalance: "INSUFFICIENT_BALANCE",
	KindInvalidToken:        "INVALID_TOKEN",
	KindPortfolioNotFound:   "PORTFOLIO_NOT_FOUND",
	KindSlippageExceeded:    "SLIPPAGE_EXCEEDED",
	KindInvalidAmount:       "INVALID_AMOUNT",
	KindDeadlineExceeded:    "DEADLINE_EXCEEDED",
	KindRebalanceNotNeeded:  "REBALANCE_NOT_NEEDED",
	KindSystemPaused:        "SYSTEM_PAUSED",
}

// String returns the symbolic code of the kind
func (k Kind) String() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return "UNKNOWN"
}

// CategorizedError represents an error with category, kind and code
type CategorizedError struct {
	Category ErrorCategory
	Kind     Kind
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Is matches any CategorizedError of the same non-zero kind, so callers can
// write errors.Is(err, ErrSystemPaused).
func (e *CategorizedError) Is(target error) bool {
	t, ok := target.(*CategorizedError)
	if !ok {
		return false
	}
	if e.Kind != KindUnknown || t.Kind != KindUnknown {
		return e.Kind == t.Kind
	}
	return e.Code == t.Code
}

// WithDetail returns a copy of the error carrying an extra detail
func (e *CategorizedError) WithDetail(key string, value interface{}) *CategorizedError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func sentinel(kind Kind, category ErrorCategory, message string) *CategorizedError {
	return &CategorizedError{
		Category: category,
		Kind:     kind,
		Code:     kind.String(),
		Message:  message,
	}
}

// Sentinel values for errors.Is comparisons
var (
	ErrOwnerOnly           = sentinel(KindOwnerOnly, CategoryAuthorization, "caller is not the registry owner")
	ErrNotFound            = sentinel(KindNotFound, CategoryNotFound, "record not found")
	ErrUnauthorized        = sentinel(KindUnauthorized, CategoryAuthorization, "caller is not authorized")
	ErrInvalidPercentage   = sentinel(KindInvalidPercentage, CategoryValidation, "invalid percentage")
	ErrInsufficientBalance = sentinel(KindInsufficientBalance, CategoryValidation, "insufficient balance")
	ErrInvalidToken        = sentinel(KindInvalidToken, CategoryValidation, "invalid token")
	ErrPortfolioNotFound   = sentinel(KindPortfolioNotFound, CategoryNotFound, "portfolio not found")
	ErrSlippageExceeded    = sentinel(KindSlippageExceeded, CategoryValidation, "slippage exceeded")
	ErrInvalidAmount       = sentinel(KindInvalidAmount, CategoryValidation, "invalid amount")
	ErrDeadlineExceeded    = sentinel(KindDeadlineExceeded, CategoryValidation, "deadline exceeded")
	ErrRebalanceNotNeeded  = sentinel(KindRebalanceNotNeeded, CategoryState, "rebalance not needed")
	ErrSystemPaused        = sentinel(KindSystemPaused, CategoryState, "system is paused")
)

var kindSentinels = map[Kind]*CategorizedError{
	KindOwnerOnly:           ErrOwnerOnly,
	KindNotFound:            ErrNotFound,
	KindUnauthorized:        ErrUnauthorized,
	KindInvalidPercentage:   ErrInvalidPercentage,
	KindInsufficientBalance: ErrInsufficientBalance,
	KindInvalidToken:        ErrInvalidToken,
	KindPortfolioNotFound:   ErrPortfolioNotFound,
	KindSlippageExceeded:    ErrSlippageExceeded,
	KindInvalidAmount:       ErrInvalidAmount,
	KindDeadlineExceeded:    ErrDeadlineExceeded,
	KindRebalanceNotNeeded:  ErrRebalanceNotNeeded,
	KindSystemPaused:        ErrSystemPaused,
}

// New creates an engine error of the given kind with a formatted message
func New(kind Kind, format string, args ...interface{}) *CategorizedError {
	base, ok := kindSentinels[kind]
	if !ok {
		return NewInternalError(fmt.Sprintf(format, args...), nil)
	}
	return &CategorizedError{
		Category: base.Category,
		Kind:     kind,
		Code:     base.Code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategorySystem,
		Code:     "INTERNAL_ERROR",
		Message:  message,
		Cause:    cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryDatabase,
		Code:     "DATABASE_ERROR",
		Message:  fmt.Sprintf("database error during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a Redis store error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryCache,
		Code:     "CACHE_ERROR",
		Message:  fmt.Sprintf("cache error during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

// KindOf returns the engine kind of err, or KindUnknown
func KindOf(err error) Kind {
	if catErr := Categorize(err); catErr != nil {
		return catErr.Kind
	}
	return KindUnknown
}

// IsRetryable determines if an error may be retried. Validation failures are
// retryable with corrected input; SystemPaused only after the pause is lifted.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryDatabase, CategoryCache:
		return true
	case CategorySystem:
		return false
	}

	return catErr.Kind != KindSystemPaused
}

// IsUserError determines if an error was caused by the caller's input or identity
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.Kind != KindUnknown
}

// IsSystemError determines if an error is an infrastructure failure
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	switch catErr.Category {
	case CategorySystem, CategoryDatabase, CategoryCache:
		return true
	}
	return false
}
