package httpclient

import (
	"net/http"
	"time"
)

// Request describes one outbound HTTP exchange.
type Request struct {
	// Method is the HTTP method.
	Method string
	// Path is appended to the client's BaseURL. Can be a full URL.
	Path string
	// Headers are request-specific headers (override client defaults).
	Headers map[string]string
	// Query are URL query parameters.
	Query map[string]string
	// Body accepts []byte, string, or any value that will be JSON-encoded.
	Body any
	// Auth decorates the request with credentials. Nil sends none.
	Auth Auth
	// Timeout overrides the client timeout for this exchange.
	Timeout time.Duration
}

// Response is the result of a 2xx exchange, or the payload of a StatusError.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Body is the raw response body.
	Body []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
