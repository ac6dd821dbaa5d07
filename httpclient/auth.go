package httpclient

import "net/http"

// Auth decorates an outbound request with credentials.
type Auth interface {
	Apply(req *http.Request)
}

// Bearer attaches "Authorization: Bearer <token>". An empty token adds nothing.
type Bearer string

// Apply implements Auth.
func (b Bearer) Apply(req *http.Request) {
	if b != "" {
		req.Header.Set("Authorization", "Bearer "+string(b))
	}
}

// APIKey sends a static key in a header, e.g. a public client identifier.
type APIKey struct {
	Header string
	Key    string
}

// Apply implements Auth.
func (a APIKey) Apply(req *http.Request) {
	name := a.Header
	if name == "" {
		name = "X-API-Key"
	}
	if a.Key != "" {
		req.Header.Set(name, a.Key)
	}
}

// AuthFunc adapts a function to Auth.
type AuthFunc func(*http.Request)

// Apply implements Auth.
func (f AuthFunc) Apply(req *http.Request) {
	if f != nil {
		f(req)
	}
}
