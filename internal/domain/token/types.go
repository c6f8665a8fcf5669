// Package token defines the JWT-backed token data model and the
// TokenService capability contract (spec.md §3, §4.7).
package token

import (
	"context"
	"time"
)

// Type distinguishes the purpose a token was issued for.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
	TypeAPIKey  Type = "api_key"
)

// Algorithm enumerates the signing algorithms a TokenService may be
// constructed with. The algorithm is fixed at construction and never read
// from a presented token's own header, preventing algorithm-confusion
// attacks (spec.md §4.7).
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	HS384 Algorithm = "HS384"
	HS512 Algorithm = "HS512"
	RS256 Algorithm = "RS256"
	RS384 Algorithm = "RS384"
	RS512 Algorithm = "RS512"
	ES256 Algorithm = "ES256"
	ES384 Algorithm = "ES384"
	ES512 Algorithm = "ES512"
)

// Token is the service's view of an issued JWT (spec.md §3).
type Token struct {
	TokenID   string // jti
	Value     string // encoded compact JWS
	Type      Type
	UserID    string
	Payload   map[string]any
	CreatedAt time.Time
	ExpiresAt time.Time
	IsActive  bool
}

// GenerateParams carries caller input to Service.Generate.
type GenerateParams struct {
	UserID  string
	Type    Type
	TTL     time.Duration
	Payload map[string]any
}

// RefreshParams carries caller input to Service.Refresh.
type RefreshParams struct {
	RefreshToken        string
	NewAccessTokenTTL   time.Duration
	RotateRefreshTokens bool
}

// RefreshResult is returned by Service.Refresh.
type RefreshResult struct {
	AccessToken      *Token
	NewRefreshToken  *Token // non-nil only when RotateRefreshTokens was requested
}

// Service is the JWT-provider capability contract (spec.md §4.7). It is
// stateless with respect to revocation: Revoke validates the token and
// reports success, but maintains no blacklist unless the concrete
// implementation is backed by one (spec.md §4.7 "Stateless revocation").
type Service interface {
	// Generate issues a new signed token. Required event: none at the
	// token-service layer itself — callers that wrap Generate inside a
	// guarded operation (e.g. authflow.Authenticator) attach their own
	// pipeline term.
	Generate(ctx context.Context, params GenerateParams) (*Token, error)

	// Validate decodes and verifies a presented token string against the
	// service's fixed algorithm, enforcing signature, exp, iat, and
	// configured iss/aud.
	Validate(ctx context.Context, tokenValue string) (*Token, error)

	// Refresh validates a presented refresh token and issues a new access
	// token carrying the same user payload.
	Refresh(ctx context.Context, params RefreshParams) (*RefreshResult, error)

	// Revoke reports whether tokenValue is a well-formed, currently-valid
	// token. See the stateless-revocation caveat above.
	Revoke(ctx context.Context, tokenValue string) (bool, error)
}
