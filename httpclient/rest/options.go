package rest

import "time"

// Options are the per-call switches.
type Options struct {
	// SkipAuth sends the call without a credential and never renews.
	SkipAuth bool
	// NoRetry runs exactly one attempt (plus a post-renewal re-issue).
	NoRetry bool
	// Timeout overrides the transport timeout of each attempt.
	Timeout time.Duration
}

// Call describes one logical call. It is owned by that call for its whole
// lifetime and re-issued unchanged on retry or after renewal.
type Call struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    any
	Options Options
}

// RequestOption configures a single call.
type RequestOption func(*Call)

// SkipAuth marks the call as public.
func SkipAuth() RequestOption {
	return func(c *Call) { c.Options.SkipAuth = true }
}

// NoRetry disables retries for the call.
func NoRetry() RequestOption {
	return func(c *Call) { c.Options.NoRetry = true }
}

// Timeout sets the per-attempt timeout.
func Timeout(d time.Duration) RequestOption {
	return func(c *Call) { c.Options.Timeout = d }
}

// WithQuery adds query parameters to the call.
func WithQuery(params map[string]string) RequestOption {
	return func(c *Call) {
		if c.Query == nil {
			c.Query = make(map[string]string, len(params))
		}
		for k, v := range params {
			c.Query[k] = v
		}
	}
}

// WithHeaders adds headers to the call.
func WithHeaders(headers map[string]string) RequestOption {
	return func(c *Call) {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			c.Headers[k] = v
		}
	}
}
