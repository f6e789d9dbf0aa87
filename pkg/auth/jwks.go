package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates a JWT token string and returns the claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
	Close()
}

// ValidatorConfig contains configuration for token validation.
type ValidatorConfig struct {
	// EnableVerification controls whether JWT signatures are verified.
	// Set to false for development mode (parses tokens without verification).
	EnableVerification bool
	// JWKSURL selects JWKS verification when set.
	JWKSURL string
	// Secret verifies HS256 tokens when JWKSURL is empty.
	Secret   string
	Issuer   string
	Audience string
}

// NewTokenValidator returns the validator selected by cfg.
func NewTokenValidator(ctx context.Context, cfg *ValidatorConfig) (TokenValidator, error) {
	switch {
	case !cfg.EnableVerification:
		return &unverifiedValidator{}, nil
	case cfg.JWKSURL != "":
		return NewJWKSClient(ctx, cfg)
	case cfg.Secret != "":
		return NewHMACValidator(cfg), nil
	default:
		return nil, errors.New("auth verification enabled but neither jwks_url nor AUTH_JWT_SECRET is set")
	}
}

func parserOptions(cfg *ValidatorConfig, methods ...string) []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return opts
}

// JWKSClient validates JWT tokens using a JWKS (JSON Web Key Set) endpoint.
type JWKSClient struct {
	jwks   keyfunc.Keyfunc
	parser *jwt.Parser
	cancel context.CancelFunc
}

// NewJWKSClient fetches the key set and keeps it refreshed until Close.
func NewJWKSClient(ctx context.Context, cfg *ValidatorConfig) (*JWKSClient, error) {
	ctx, cancel := context.WithCancel(ctx)
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create JWKS client for %s: %w", cfg.JWKSURL, err)
	}
	return &JWKSClient{
		jwks:   jwks,
		parser: jwt.NewParser(parserOptions(cfg, "RS256", "ES256")...),
		cancel: cancel,
	}, nil
}

// ValidateToken verifies the signature with the key set and returns the claims.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	token, err := c.parser.ParseWithClaims(tokenString, &Claims{}, c.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return claimsFrom(token)
}

// Close stops the background key refresh.
func (c *JWKSClient) Close() {
	c.cancel()
}

// HMACValidator validates HS256 tokens signed with a shared secret.
type HMACValidator struct {
	secret []byte
	parser *jwt.Parser
}

// NewHMACValidator creates an HMACValidator.
func NewHMACValidator(cfg *ValidatorConfig) *HMACValidator {
	return &HMACValidator{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(parserOptions(cfg, "HS256")...),
	}
}

// ValidateToken verifies the HMAC signature and returns the claims.
func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return claimsFrom(token)
}

// Close is a no-op.
func (v *HMACValidator) Close() {}

// unverifiedValidator parses tokens without checking the signature.
// Used in development mode when EnableVerification is false.
type unverifiedValidator struct{}

func (unverifiedValidator) ValidateToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claimsFrom(token)
}

func (unverifiedValidator) Close() {}

func claimsFrom(token *jwt.Token) (*Claims, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

var (
	_ TokenValidator = (*JWKSClient)(nil)
	_ TokenValidator = (*HMACValidator)(nil)
	_ TokenValidator = unverifiedValidator{}
)
