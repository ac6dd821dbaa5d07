// Package credential persists and validates the short-lived/long-lived token
// pair used to authenticate API calls.
//
// The Store is pure data access: it never coordinates renewals. Tokens are
// decoded (not verified, the client never holds the signing key) every time
// they are inspected, because wall-clock time advances between uses.
//
//	store := credential.NewStore(credential.NewMemoryBackend())
//	store.Save(ctx, credential.Pair{Access: access, Refresh: refresh})
//	if token, ok := store.ValidAccessToken(ctx); ok {
//	    req.Header.Set("Authorization", "Bearer "+token)
//	}
package credential
