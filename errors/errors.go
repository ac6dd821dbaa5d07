package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind tags how a failure reached the client.
type Kind int

const (
	// KindUnknown is any failure that is neither a transport failure nor an
	// HTTP response.
	KindUnknown Kind = iota
	// KindNetwork means no response object exists at all.
	KindNetwork
	// KindHTTP means the server answered with a non-2xx status.
	KindHTTP
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Error is the normalized error returned by every client operation.
type Error struct {
	// Kind is decided once when the failure is normalized.
	Kind Kind
	// Code is a machine-readable code, taken from the response body when present.
	Code ErrorCode
	// Message is a human-readable message.
	Message string
	// StatusCode is the HTTP status (0 when no response was received).
	StatusCode int
	// Details carries structured details from the error body.
	Details map[string]any
	// CorrelationID identifies the failed request on the server side.
	CorrelationID string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// IsNetworkError reports whether no response was received.
func (e *Error) IsNetworkError() bool { return e.Kind == KindNetwork }

// IsAuthError reports whether the server answered 401 or 403.
func (e *Error) IsAuthError() bool {
	return e.Kind == KindHTTP && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// IsServerError reports whether the server answered with a 5xx status.
func (e *Error) IsServerError() bool {
	return e.Kind == KindHTTP && e.StatusCode >= http.StatusInternalServerError
}

// WithCause sets the underlying cause and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

type errorJSON struct {
	Code           ErrorCode      `json:"code"`
	Message        string         `json:"message"`
	StatusCode     int            `json:"statusCode"`
	Details        map[string]any `json:"details,omitempty"`
	CorrelationID  string         `json:"correlationId,omitempty"`
	IsNetworkError bool           `json:"isNetworkError"`
	IsAuthError    bool           `json:"isAuthError"`
	IsServerError  bool           `json:"isServerError"`
}

// MarshalJSON renders the error with its derived classification flags so UI
// collaborators can consume it directly.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(errorJSON{
		Code:           e.Code,
		Message:        e.Message,
		StatusCode:     e.StatusCode,
		Details:        e.Details,
		CorrelationID:  e.CorrelationID,
		IsNetworkError: e.IsNetworkError(),
		IsAuthError:    e.IsAuthError(),
		IsServerError:  e.IsServerError(),
	})
}

// --- Constructors ---

// Network creates an error for a request that never produced a response.
func Network(cause error) *Error {
	msg := "network request failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindNetwork, Code: ErrCodeNetwork, Message: msg, Cause: cause}
}

// Unknown wraps an unclassified failure.
func Unknown(cause error) *Error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindUnknown, Code: ErrCodeUnknown, Message: msg, Cause: cause}
}

// Canceled creates an error for a request abandoned by its caller.
func Canceled(cause error) *Error {
	return &Error{Kind: KindUnknown, Code: ErrCodeCanceled, Message: "request canceled", Cause: cause}
}

// ClientClosed creates an error for a call that was pending when the client closed.
func ClientClosed() *Error {
	return &Error{Kind: KindUnknown, Code: ErrCodeClientClosed, Message: "client closed"}
}

// HTTP creates an error for a non-2xx response. An empty code falls back to
// the status table and an empty message to the status text.
func HTTP(status int, code ErrorCode, message string) *Error {
	if code == "" {
		code = CodeForStatus(status)
	}
	if message == "" {
		message = http.StatusText(status)
		if message == "" {
			message = fmt.Sprintf("HTTP %d", status)
		}
	}
	return &Error{Kind: KindHTTP, Code: code, Message: message, StatusCode: status}
}

// TokenRevoked creates the auth failure reported when the credential pair
// could not be renewed.
func TokenRevoked(cause error) *Error {
	return &Error{
		Kind:       KindHTTP,
		Code:       ErrCodeTokenRevoked,
		Message:    "Your session has expired. Please log in again.",
		StatusCode: http.StatusUnauthorized,
		Cause:      cause,
	}
}

// --- Inspection helpers ---

// From extracts an *Error from err's chain.
func From(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsNetwork checks if err is a network error.
func IsNetwork(err error) bool {
	e, ok := From(err)
	return ok && e.IsNetworkError()
}

// IsAuth checks if err is a 401/403 error.
func IsAuth(err error) bool {
	e, ok := From(err)
	return ok && e.IsAuthError()
}

// IsServer checks if err is a 5xx error.
func IsServer(err error) bool {
	e, ok := From(err)
	return ok && e.IsServerError()
}

// HasCode checks if err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	e, ok := From(err)
	return ok && e.Code == code
}
