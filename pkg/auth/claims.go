// Package auth verifies bearer tokens for content-engine.
// Tokens are either HS256 tokens signed with a shared secret (Supabase-style)
// or asymmetric tokens verified against a JWKS endpoint.
package auth

import (
	"context"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// AppMetadata is the provider-managed metadata block. Users cannot edit it,
// so roles are read from here rather than user_metadata.
type AppMetadata struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Claims represents the JWT claims of a dashboard user.
// Subject is the user id every workflow row is owned by.
type Claims struct {
	jwt.RegisteredClaims
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"` // postgres role, usually "authenticated"
	AppMetadata AppMetadata `json:"app_metadata,omitempty"`
}

// HasRole reports whether the app metadata grants role.
func (c *Claims) HasRole(role string) bool {
	if role == "" {
		return false
	}
	return c.AppMetadata.Role == role || slices.Contains(c.AppMetadata.Roles, role)
}

// WithClaims stores claims and the raw token in ctx.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, TokenKey, token)
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
