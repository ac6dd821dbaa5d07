// Package rest is the authenticated request pipeline: a JSON client that
// attaches the stored credential, renews it once on 401 through the refresh
// coordinator, retries transient failures with backoff, and reports every
// failure as an *errors.Error.
//
//	store := credential.NewStore(credential.NewMemoryBackend())
//	client, _ := rest.New(httpclient.Config{BaseURL: "https://api.example.com"}, store)
//	defer client.Close()
//
//	_, _ = client.Login(ctx, rest.DefaultLoginPath, loginForm)
//
//	// Typed GET
//	user, err := rest.Get[User](ctx, client, "/users/123")
//
//	// Typed POST without retries
//	created, err := rest.Post[User](ctx, client, "/users", CreateUserRequest{Name: "Alice"}, rest.NoRetry())
//
//	// Public endpoint, no credential attached
//	cfg, err := rest.PublicGet[SiteConfig](ctx, client, "/public/config")
//
// Each logical call carries one X-Request-ID across its retries and its
// post-renewal re-issue. Renewal and retry budgets are never shared between
// calls.
package rest
