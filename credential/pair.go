package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Pair is the credential pair. It is either fully present or treated as absent.
type Pair struct {
	// Access is the short-lived token attached to every authenticated call.
	Access string `json:"access"`
	// Refresh is the long-lived token used only to obtain a new pair.
	Refresh string `json:"refresh"`
}

// Complete reports whether both tokens are present.
func (p Pair) Complete() bool {
	return p.Access != "" && p.Refresh != ""
}

// Claims is the decoded, read-only view of a token.
type Claims struct {
	Subject   string
	TenantID  string
	ExpiresAt time.Time
}

// HasExpiry reports whether the token carries an exp claim.
func (c Claims) HasExpiry() bool { return !c.ExpiresAt.IsZero() }

// tokenClaims is the payload shape issued by the API.
type tokenClaims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id,omitempty"`
	Tenant   string `json:"tenant,omitempty"`
}

// ErrMalformedToken is returned when a token cannot be decoded.
var ErrMalformedToken = errors.New("credential: malformed token")

var parser = jwt.NewParser()

// DecodeClaims decodes a token's payload without verifying its signature.
func DecodeClaims(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMalformedToken
	}
	var tc tokenClaims
	if _, _, err := parser.ParseUnverified(token, &tc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims := Claims{Subject: tc.Subject, TenantID: tc.TenantID}
	if claims.TenantID == "" {
		claims.TenantID = tc.Tenant
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}
