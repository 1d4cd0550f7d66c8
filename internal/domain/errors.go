package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Gatekeeper rejections (WEBHOOK_AUTH_*) — no event row is written for these
	ErrorCodeUnknownProvider  ErrorCode = "WEBHOOK_AUTH_UNKNOWN_PROVIDER"
	ErrorCodeMissingHeaders   ErrorCode = "WEBHOOK_AUTH_MISSING_HEADERS"
	ErrorCodeBadTimestamp     ErrorCode = "WEBHOOK_AUTH_BAD_TIMESTAMP"
	ErrorCodeStaleTimestamp   ErrorCode = "WEBHOOK_AUTH_STALE_TIMESTAMP"
	ErrorCodeIPForbidden      ErrorCode = "WEBHOOK_IP_FORBIDDEN"
	ErrorCodeRateLimited      ErrorCode = "WEBHOOK_RATE_LIMITED"
	ErrorCodeBadSignature     ErrorCode = "WEBHOOK_SIGNATURE_INVALID"
	ErrorCodeBadBodyEncoding  ErrorCode = "WEBHOOK_BAD_ENCODING"

	// Event processing errors (WEBHOOK_*)
	ErrorCodeInvalidPayload ErrorCode = "WEBHOOK_INVALID_PAYLOAD"
	ErrorCodeReplayAttack   ErrorCode = "WEBHOOK_REPLAY"

	// Entity lookup errors (*_NOT_FOUND)
	ErrorCodeCustomerNotFound     ErrorCode = "CUSTOMER_NOT_FOUND"
	ErrorCodeSubscriptionNotFound ErrorCode = "SUBSCRIPTION_NOT_FOUND"
	ErrorCodeEventNotFound        ErrorCode = "EVENT_NOT_FOUND"

	// Idempotency errors (IDEMPOTENCY_*)
	ErrorCodeIdempotencyConflict ErrorCode = "IDEMPOTENCY_CONFLICT"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// ErrorMessage returns the bare message of a DomainError, or the error string otherwise
func ErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		if domainErr.Err != nil {
			return fmt.Sprintf("%s: %v", domainErr.Message, domainErr.Err)
		}
		return domainErr.Message
	}
	return err.Error()
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeCustomerNotFound ||
		code == ErrorCodeSubscriptionNotFound ||
		code == ErrorCodeEventNotFound
}

// IsInvalidPayloadError checks if an error is a payload contract violation
func IsInvalidPayloadError(err error) bool {
	return GetErrorCode(err) == ErrorCodeInvalidPayload
}

// IsReplayAttackError checks if an error is a webhook replay rejection
func IsReplayAttackError(err error) bool {
	return GetErrorCode(err) == ErrorCodeReplayAttack
}

// IsGatekeeperError checks if an error was raised before an event row was written
func IsGatekeeperError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeUnknownProvider, ErrorCodeMissingHeaders, ErrorCodeBadTimestamp,
		ErrorCodeStaleTimestamp, ErrorCodeIPForbidden, ErrorCodeRateLimited,
		ErrorCodeBadSignature, ErrorCodeBadBodyEncoding:
		return true
	}
	return false
}

// Structured error instances
var (
	ErrUnknownProvider = NewDomainError(ErrorCodeUnknownProvider, "unknown webhook provider")
	ErrMissingHeaders  = NewDomainError(ErrorCodeMissingHeaders, "missing webhook signature headers")
	ErrBadTimestamp    = NewDomainError(ErrorCodeBadTimestamp, "invalid webhook timestamp")
	ErrStaleTimestamp  = NewDomainError(ErrorCodeStaleTimestamp, "webhook timestamp outside allowed window")
	ErrIPForbidden     = NewDomainError(ErrorCodeIPForbidden, "ip not allowed")
	ErrRateLimited     = NewDomainError(ErrorCodeRateLimited, "rate limit exceeded")
	ErrBadSignature    = NewDomainError(ErrorCodeBadSignature, "invalid webhook signature")
	ErrBadBodyEncoding = NewDomainError(ErrorCodeBadBodyEncoding, "invalid webhook body encoding")

	ErrCustomerNotFound     = NewDomainError(ErrorCodeCustomerNotFound, "customer not found")
	ErrSubscriptionNotFound = NewDomainError(ErrorCodeSubscriptionNotFound, "subscription not found")
	ErrEventNotFound        = NewDomainError(ErrorCodeEventNotFound, "webhook event not found")

	ErrEventAlreadyExists = NewDomainError(ErrorCodeIdempotencyConflict, "webhook event already exists")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
