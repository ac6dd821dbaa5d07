package apitest

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kbukum/apiclient/credential"
)

// Token types carried in the token_type claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the payload of issued tokens.
type Claims struct {
	jwt.RegisteredClaims
	TenantID  string `json:"tenant_id,omitempty"`
	TokenType string `json:"token_type"`
}

var errWrongTokenType = errors.New("wrong token type")

// Mint signs a token of the given type for subject, expiring at exp.
func (s *Server) Mint(tokenType, subject, tenant string, exp time.Time) string {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		TenantID:  tenant,
		TokenType: tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return signed
}

// IssuePair mints a fresh pair and registers its refresh token as valid.
func (s *Server) IssuePair(subject, tenant string) credential.Pair {
	now := s.now()
	pair := credential.Pair{
		Access:  s.Mint(TypeAccess, subject, tenant, now.Add(s.accessTTL)),
		Refresh: s.Mint(TypeRefresh, subject, tenant, now.Add(s.refreshTTL)),
	}
	s.mu.Lock()
	s.refreshTokens[pair.Refresh] = struct{}{}
	s.mu.Unlock()
	return pair
}

// ExpiredAccess mints an access token that expired a minute ago.
func (s *Server) ExpiredAccess(subject string) string {
	return s.Mint(TypeAccess, subject, "", s.now().Add(-time.Minute))
}

// verify checks signature, expiry and token type.
func (s *Server) verify(token, tokenType string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, errWrongTokenType
	}
	return &claims, nil
}
