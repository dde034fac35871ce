package core

import (
	"fmt"
	"net/http"
)

// Category is the classified kind of a gateway failure.
type Category string

const (
	// CategoryBadRequest indicates a caller error: bad provider, model, or parameter.
	CategoryBadRequest Category = "bad_request"
	// CategoryUnauthorized indicates a missing or invalid credential.
	CategoryUnauthorized Category = "unauthorized"
	// CategoryForbiddenLeaked indicates a credential blocked because it was reported as leaked.
	CategoryForbiddenLeaked Category = "forbidden_leaked"
	// CategoryForbiddenOther indicates a credential revoked or blocked for another reason.
	CategoryForbiddenOther Category = "forbidden"
	// CategoryRateLimited indicates a provider quota or rate limit.
	CategoryRateLimited Category = "rate_limited"
	// CategoryInsufficientBalance indicates a billing problem on the provider account.
	CategoryInsufficientBalance Category = "insufficient_balance"
	// CategoryInternal covers everything unclassified, including operator
	// configuration errors such as a missing credential.
	CategoryInternal Category = "internal"
)

// Error is a classified gateway error. Every failure leaving the gateway is
// one of these; messages are human-actionable and name the configuration key
// or limit involved rather than exposing provider internals.
type Error struct {
	Category          Category `json:"category"`
	Message           string   `json:"message"`
	Provider          string   `json:"provider,omitempty"`
	RetryAfterSeconds int      `json:"retry_after_seconds,omitempty"`
	// Cause is the original error, kept for logs only.
	Cause error `json:"-"`
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Category, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode maps the category to the status the transport should return.
func (e *Error) HTTPStatusCode() int {
	switch e.Category {
	case CategoryBadRequest:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryForbiddenLeaked, CategoryForbiddenOther:
		return http.StatusForbidden
	case CategoryRateLimited:
		return http.StatusTooManyRequests
	case CategoryInsufficientBalance:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the response body shape.
func (e *Error) ToJSON() map[string]interface{} {
	inner := map[string]interface{}{
		"category": e.Category,
		"message":  e.Message,
	}
	if e.RetryAfterSeconds > 0 {
		inner["retry_after_seconds"] = e.RetryAfterSeconds
	}
	return map[string]interface{}{"error": inner}
}

// NewBadRequestError creates a caller error.
func NewBadRequestError(message string) *Error {
	return &Error{Category: CategoryBadRequest, Message: message}
}

// NewInternalError creates an unclassified or configuration error.
func NewInternalError(provider, message string, cause error) *Error {
	return &Error{Category: CategoryInternal, Message: message, Provider: provider, Cause: cause}
}
