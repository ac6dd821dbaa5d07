package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kbukum/apiclient/credential"
	apierrors "github.com/kbukum/apiclient/errors"
	"github.com/kbukum/apiclient/httpclient"
)

// DefaultRenewPath is the renewal endpoint.
const DefaultRenewPath = "/auth/token/refresh/"

// Renewer trades a long-lived token for a new credential pair. A returned
// pair without a Refresh token keeps the current one.
type Renewer interface {
	Renew(ctx context.Context, refreshToken string) (credential.Pair, error)
}

// RenewerFunc adapts a function to Renewer.
type RenewerFunc func(ctx context.Context, refreshToken string) (credential.Pair, error)

// Renew implements Renewer.
func (f RenewerFunc) Renew(ctx context.Context, refreshToken string) (credential.Pair, error) {
	return f(ctx, refreshToken)
}

// HTTPRenewer performs the renewal exchange over the transport. It issues
// exactly one request and never retries.
type HTTPRenewer struct {
	client *httpclient.Client
	path   string
}

// NewHTTPRenewer creates a renewer posting to path, or DefaultRenewPath when
// path is empty.
func NewHTTPRenewer(client *httpclient.Client, path string) *HTTPRenewer {
	if path == "" {
		path = DefaultRenewPath
	}
	return &HTTPRenewer{client: client, path: path}
}

type renewRequest struct {
	Refresh string `json:"refresh"`
}

// Renew implements Renewer. Any non-2xx answer is a failure.
func (r *HTTPRenewer) Renew(ctx context.Context, refreshToken string) (credential.Pair, error) {
	resp, err := r.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    r.path,
		Body:    renewRequest{Refresh: refreshToken},
		Headers: map[string]string{"Accept": "application/json"},
	})
	if err != nil {
		return credential.Pair{}, httpclient.Normalize(err)
	}

	var pair credential.Pair
	if err := json.Unmarshal(resp.Body, &pair); err != nil {
		return credential.Pair{}, apierrors.Unknown(fmt.Errorf("decode renewal response: %w", err))
	}
	if pair.Access == "" {
		return credential.Pair{}, apierrors.Unknown(errors.New("renewal response has no access token"))
	}
	if pair.Refresh == "" {
		pair.Refresh = refreshToken
	}
	return pair, nil
}
