// Package errors defines the one error shape every request made through the
// client resolves to.
//
// A failure is classified exactly once, at the transport boundary, into a
// Kind (network, HTTP, unknown). The auth/server/network classifiers are then
// derived from Kind and StatusCode alone, never from message text:
//
//	resp, err := rest.Get[User](ctx, client, "/users/me")
//	if e, ok := errors.From(err); ok && e.IsAuthError() {
//	    // prompt for credentials
//	}
package errors
