package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/apiclient/credential"
	apierrors "github.com/kbukum/apiclient/errors"
	"github.com/kbukum/apiclient/logger"
	"github.com/kbukum/apiclient/observability"
	"github.com/kbukum/apiclient/refresh"
)

// DefaultLoginPath is the token endpoint used by Login when path is empty.
const DefaultLoginPath = "/auth/token/"

// Login posts credentials to a public token endpoint and installs the
// returned pair. It returns the decoded claims of the new access token.
func (c *Client) Login(ctx context.Context, path string, credentials any) (credential.Claims, error) {
	if path == "" {
		path = DefaultLoginPath
	}
	resp, err := PublicPost[credential.Pair](ctx, c, path, credentials)
	if err != nil {
		return credential.Claims{}, err
	}
	if !resp.Data.Complete() {
		return credential.Claims{}, apierrors.Unknown(fmt.Errorf("login response: %w", refresh.ErrIncompletePair))
	}
	if err := c.coord.Install(ctx, resp.Data); err != nil {
		return credential.Claims{}, err
	}

	claims, _ := c.store.Claims(resp.Data.Access)
	c.log.Info("logged in", logger.Fields(logger.FieldSubject, claims.Subject))
	return claims, nil
}

// Logout discards the stored pair. Calls waiting on a renewal fail.
func (c *Client) Logout(ctx context.Context) error {
	return c.coord.Revoke(ctx)
}

// Authenticated reports whether a valid access token is stored.
func (c *Client) Authenticated(ctx context.Context) bool {
	_, ok := c.store.ValidAccessToken(ctx)
	return ok
}

// CheckHealth reports the state of the stored session.
func (c *Client) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{Name: "session", Details: map[string]string{}}

	pair, ok := c.store.Load(ctx)
	if !ok {
		h.Status = observability.HealthStatusDown
		h.Message = "not logged in"
		return h
	}

	if claims, err := c.store.Claims(pair.Access); err == nil {
		if claims.Subject != "" {
			h.Details["subject"] = claims.Subject
		}
		if claims.TenantID != "" {
			h.Details["tenant"] = claims.TenantID
		}
		if claims.HasExpiry() {
			h.Details["expires_at"] = claims.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}

	if c.store.IsExpired(pair.Access, 0) {
		h.Status = observability.HealthStatusDegraded
		h.Message = "access token expired, renewal pending"
		return h
	}
	h.Status = observability.HealthStatusUp
	return h
}
