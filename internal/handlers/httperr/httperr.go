// Package httperr maps domain error codes onto HTTP responses so every
// handler rejects the same failure the same way.
package httperr

import (
	"encoding/json"
	"net/http"

	"github.com/hookpay/webhook-service/internal/domain"
)

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// StatusFor returns the HTTP status for a domain error. Credential and
// header failures are 401; signature, allowlist and replay rejections are
// 403; everything unclassified is a 500 so real bugs do not hide behind
// client-error statuses.
func StatusFor(err error) int {
	switch domain.GetErrorCode(err) {
	case domain.ErrorCodeUnknownProvider,
		domain.ErrorCodeMissingHeaders,
		domain.ErrorCodeBadTimestamp,
		domain.ErrorCodeStaleTimestamp:
		return http.StatusUnauthorized
	case domain.ErrorCodeIPForbidden,
		domain.ErrorCodeBadSignature,
		domain.ErrorCodeReplayAttack:
		return http.StatusForbidden
	case domain.ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	case domain.ErrorCodeBadBodyEncoding,
		domain.ErrorCodeInvalidPayload:
		return http.StatusBadRequest
	case domain.ErrorCodeCustomerNotFound,
		domain.ErrorCodeSubscriptionNotFound,
		domain.ErrorCodeEventNotFound:
		return http.StatusNotFound
	case domain.ErrorCodeIdempotencyConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Write sends the JSON error response for err
func Write(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := ErrorResponse{Error: domain.ErrorMessage(err)}
	if code := domain.GetErrorCode(err); code != "" {
		body.Code = string(code)
	}
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		body = ErrorResponse{Error: "internal server error", Code: string(domain.ErrorCodeInternalError)}
	}
	JSON(w, status, body)
}

// JSON writes v as a JSON response with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
