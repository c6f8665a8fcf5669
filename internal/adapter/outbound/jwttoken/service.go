// Package jwttoken implements token.Service with github.com/golang-jwt/jwt/v5,
// grounded in abramin-Credo/internal/jwt_token/jwt.go's Claims-plus-RegisteredClaims
// shape and its algorithm-confusion guard in ValidateToken.
package jwttoken

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/token"
	"github.com/wardenauth/warden/internal/domain/wardenerr"
)

var signingMethods = map[token.Algorithm]jwt.SigningMethod{
	token.HS256: jwt.SigningMethodHS256,
	token.HS384: jwt.SigningMethodHS384,
	token.HS512: jwt.SigningMethodHS512,
	token.RS256: jwt.SigningMethodRS256,
	token.RS384: jwt.SigningMethodRS384,
	token.RS512: jwt.SigningMethodRS512,
	token.ES256: jwt.SigningMethodES256,
	token.ES384: jwt.SigningMethodES384,
	token.ES512: jwt.SigningMethodES512,
}

// Config configures a Service at construction. SigningKey/VerifyKey types
// depend on Algorithm: []byte for HS*, *rsa.PrivateKey/*rsa.PublicKey for
// RS*, *ecdsa.PrivateKey/*ecdsa.PublicKey for ES*. VerifyKey may be left nil
// for symmetric algorithms, in which case SigningKey doubles as the
// verification key.
type Config struct {
	Algorithm token.Algorithm
	SigningKey any
	VerifyKey  any
	Issuer     string
	Audience   string
}

// Service implements token.Service. The signing algorithm is fixed at
// construction and never read from a presented token's own header
// (spec.md §4.7's algorithm-confusion guard, grounded in abramin-Credo's
// ValidateToken checking token.Method before trusting the header).
type Service struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string

	mu      sync.Mutex
	revoked map[string]struct{} // jti set; optional best-effort blacklist
}

// New constructs a Service. Returns an error if cfg.Algorithm is unsupported.
func New(cfg Config) (*Service, error) {
	method, ok := signingMethods[cfg.Algorithm]
	if !ok {
		return nil, wardenerr.NewConfigurationError(fmt.Sprintf("unsupported token algorithm %q", cfg.Algorithm), nil)
	}
	verifyKey := cfg.VerifyKey
	if verifyKey == nil {
		verifyKey = cfg.SigningKey
	}
	return &Service{
		method:    method,
		signKey:   cfg.SigningKey,
		verifyKey: verifyKey,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		revoked:   make(map[string]struct{}),
	}, nil
}

// Generate issues a new signed token carrying a sanitized caller payload
// (spec.md §4.7 "Generate"). Reserved claims (jti, iat, exp, type, sub/
// user_id, iss, aud) are always set by the service and may not be
// overridden by params.Payload.
func (s *Service) Generate(ctx context.Context, params token.GenerateParams) (*token.Token, error) {
	if params.UserID == "" {
		return nil, wardenerr.NewAuthValidationError("token requires a user_id", nil)
	}

	now := time.Now().UTC()
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"jti":  jti,
		"iat":  jwt.NewNumericDate(now),
		"exp":  jwt.NewNumericDate(now.Add(params.TTL)),
		"type": string(params.Type),
		"sub":  params.UserID,
	}
	if s.issuer != "" {
		claims["iss"] = s.issuer
	}
	if s.audience != "" {
		claims["aud"] = s.audience
	}

	payload := sanitizePayload(params.Payload)
	for k, v := range payload {
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
	if err != nil {
		return nil, wardenerr.NewProviderError(wardenerr.ProviderInitFailed, "failed to sign token", err)
	}

	return &token.Token{
		TokenID:   jti,
		Value:     signed,
		Type:      params.Type,
		UserID:    params.UserID,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(params.TTL),
		IsActive:  true,
	}, nil
}

// Validate decodes tokenValue against exactly the service's configured
// algorithm (spec.md §4.7 "Validate"), enforcing signature, exp, iat,
// configured iss/aud, and presence of jti.
func (s *Service) Validate(ctx context.Context, tokenValue string) (*token.Token, error) {
	var opts []jwt.ParserOption
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	parsed, err := jwt.Parse(tokenValue, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.verifyKey, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, wardenerr.NewSessionExpiredError("token expired", nil)
		}
		return nil, wardenerr.NewAuthenticationError("invalid token", nil)
	}
	if !parsed.Valid {
		return nil, wardenerr.NewAuthenticationError("invalid token", nil)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, wardenerr.NewAuthenticationError("invalid token claims", nil)
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, wardenerr.NewAuthenticationError("token missing jti claim", nil)
	}

	s.mu.Lock()
	_, blacklisted := s.revoked[jti]
	s.mu.Unlock()
	if blacklisted {
		return nil, wardenerr.NewAuthenticationError("token has been revoked", nil)
	}

	return claimsToToken(jti, claims)
}

// Refresh validates a presented refresh token and issues a new access token
// carrying the same user payload, stripped of reserved claims (spec.md §4.7
// "Refresh").
func (s *Service) Refresh(ctx context.Context, params token.RefreshParams) (*token.RefreshResult, error) {
	refreshed, err := s.Validate(ctx, params.RefreshToken)
	if err != nil {
		return nil, err
	}
	if refreshed.Type != token.TypeRefresh {
		return nil, wardenerr.NewAuthValidationError("presented token is not a refresh token", nil)
	}

	access, err := s.Generate(ctx, token.GenerateParams{
		UserID:  refreshed.UserID,
		Type:    token.TypeAccess,
		TTL:     params.NewAccessTokenTTL,
		Payload: refreshed.Payload,
	})
	if err != nil {
		return nil, err
	}

	result := &token.RefreshResult{AccessToken: access}
	if params.RotateRefreshTokens {
		newRefresh, err := s.Generate(ctx, token.GenerateParams{
			UserID:  refreshed.UserID,
			Type:    token.TypeRefresh,
			TTL:     time.Until(refreshed.ExpiresAt),
			Payload: refreshed.Payload,
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.Revoke(ctx, params.RefreshToken); err != nil {
			return nil, err
		}
		result.NewRefreshToken = newRefresh
	}
	return result, nil
}

// Revoke reports whether tokenValue is a well-formed, currently-valid
// token, and adds its jti to a best-effort in-process blacklist (spec.md
// §4.7 "Stateless revocation": JWTs are stateless by nature, so this
// blacklist is an optional backing, not a substitute for short TTLs or a
// durable revocation store).
func (s *Service) Revoke(ctx context.Context, tokenValue string) (bool, error) {
	tok, err := s.Validate(ctx, tokenValue)
	if err != nil {
		return false, nil
	}
	s.mu.Lock()
	s.revoked[tok.TokenID] = struct{}{}
	s.mu.Unlock()
	return true, nil
}

func claimsToToken(jti string, claims jwt.MapClaims) (*token.Token, error) {
	userID, _ := claims["sub"].(string)
	typ, _ := claims["type"].(string)

	var expiresAt, issuedAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		issuedAt = iat.Time
	}

	payload := make(map[string]any, len(claims))
	for k, v := range claims {
		if isReservedClaim(k) {
			continue
		}
		payload[k] = v
	}

	return &token.Token{
		TokenID:   jti,
		Type:      token.Type(typ),
		UserID:    userID,
		Payload:   payload,
		CreatedAt: issuedAt,
		ExpiresAt: expiresAt,
		IsActive:  true,
	}, nil
}

func isReservedClaim(name string) bool {
	switch name {
	case "jti", "iat", "exp", "nbf", "sub", "iss", "aud", "type":
		return true
	default:
		return false
	}
}

// sanitizePayload drops any key matching the sensitive-field set (spec.md
// §4.7 "Payload sanitizer") and aliases user_id to sub, since sub is set by
// the service separately; user_id itself is dropped from the payload copy
// to avoid a duplicate, conflicting claim.
func sanitizePayload(payload map[string]any) map[string]any {
	clean := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == "user_id" || k == "sub" {
			continue
		}
		if audit.ContainsSensitiveKey(k) {
			continue
		}
		clean[k] = v
	}
	return clean
}

var _ token.Service = (*Service)(nil)
