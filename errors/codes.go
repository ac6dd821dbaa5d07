package errors

import "net/http"

// ErrorCode is a machine-readable error code. Codes supplied by the API in a
// structured error body are kept verbatim, so the set below is not closed.
type ErrorCode string

// Transport errors
const (
	// ErrCodeNetwork indicates no response was received (refused, DNS, timeout).
	ErrCodeNetwork ErrorCode = "network_error"
	// ErrCodeCanceled indicates the caller cancelled the request context.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeClientClosed indicates the client was closed while the call waited.
	ErrCodeClientClosed ErrorCode = "client_closed"
)

// Authentication errors (401/403)
const (
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	ErrCodeForbidden    ErrorCode = "forbidden"
	// ErrCodeTokenRevoked indicates the credential pair could not be renewed
	// and has been discarded.
	ErrCodeTokenRevoked ErrorCode = "token_revoked"
)

// Request errors
const (
	ErrCodeBadRequest  ErrorCode = "bad_request"
	ErrCodeValidation  ErrorCode = "validation_error"
	ErrCodeNotFound    ErrorCode = "not_found"
	ErrCodeRateLimited ErrorCode = "rate_limited"
)

// Server errors
const (
	ErrCodeServer   ErrorCode = "server_error"
	ErrCodeInternal ErrorCode = "internal_error"
)

// ErrCodeUnknown is used for anything that could not be classified.
const ErrCodeUnknown ErrorCode = "unknown_error"

var statusCodes = map[int]ErrorCode{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusUnauthorized:        ErrCodeUnauthorized,
	http.StatusForbidden:           ErrCodeForbidden,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusTooManyRequests:     ErrCodeRateLimited,
	http.StatusInternalServerError: ErrCodeServer,
}

// CodeForStatus returns the default code for an HTTP status when the response
// body does not name one.
func CodeForStatus(status int) ErrorCode {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	return ErrCodeUnknown
}
