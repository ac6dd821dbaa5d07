package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	apierrors "github.com/kbukum/apiclient/errors"
)

// CorrelationHeader is read when an error body carries no correlation id.
const CorrelationHeader = "X-Correlation-ID"

// StatusError reports a non-2xx response.
type StatusError struct {
	Response *Response
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: HTTP %d", e.Response.StatusCode)
}

// ConnectionError reports an exchange that produced no response.
type ConnectionError struct {
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return "httpclient: " + e.Err.Error()
}

// Unwrap returns the underlying transport error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// ResponseTooLargeError reports a response body over Config.MaxResponseBytes.
type ResponseTooLargeError struct {
	StatusCode int
	Limit      int64
}

// Error implements the error interface.
func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("httpclient: HTTP %d response body exceeds %d bytes", e.StatusCode, e.Limit)
}

// Normalize maps any failure into the normalized error shape. It is pure
// and never panics; nil maps to nil.
//
//   - an existing *errors.Error passes through
//   - *StatusError becomes KindHTTP, parsed from the error body
//   - caller cancellation becomes code "canceled"
//   - *ConnectionError, timeouts and net/url errors become KindNetwork
//   - anything else, including *ResponseTooLargeError, becomes unknown_error
func Normalize(err error) *apierrors.Error {
	if err == nil {
		return nil
	}
	if e, ok := apierrors.From(err); ok {
		return e
	}

	var se *StatusError
	if errors.As(err, &se) && se.Response != nil {
		resp := se.Response
		e := apierrors.FromResponse(resp.StatusCode, resp.Body, resp.Header.Get(CorrelationHeader))
		return e.WithCause(err)
	}

	if errors.Is(err, context.Canceled) {
		return apierrors.Canceled(err)
	}

	var ce *ConnectionError
	var ue *url.Error
	var ne net.Error
	if errors.As(err, &ce) || errors.As(err, &ue) || errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return apierrors.Network(err)
	}

	return apierrors.Unknown(err)
}
