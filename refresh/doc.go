// Package refresh coordinates credential renewal so that at most one renewal
// exchange is in flight at any time.
//
// A Coordinator owns a single goroutine. That goroutine holds the Idle or
// Refreshing state, the FIFO queue of waiting callers, and every write to
// the credential store. Callers only see AwaitFreshCredential:
//
//	coord := refresh.New(store, refresh.NewHTTPRenewer(transport, ""))
//	defer coord.Close()
//
//	token, err := coord.AwaitFreshCredential(ctx, rejectedToken)
//
// A caller whose rejected token has already been replaced in the store gets
// the stored token without a new exchange. Otherwise the first caller to
// arrive while Idle starts a renewal; everyone arriving before it settles
// joins the queue. When the renewal settles the whole queue is drained at
// once with the same outcome: the new access token, or a token_revoked error
// after the stored pair has been cleared.
//
// Install and Revoke route login and logout through the same goroutine. A
// renewal that settles after either of them is discarded.
package refresh
