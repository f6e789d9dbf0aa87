// Package testhelpers provides utilities for testing content-engine components.
package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestJWTSecret is the HS256 secret used by GenerateTestJWT.
const TestJWTSecret = "test-secret-with-enough-length-for-hs256"

// GenerateTestJWT creates an HS256 token signed with TestJWTSecret.
// role is placed in the app_metadata.role claim; pass "" for a regular user.
func GenerateTestJWT(t *testing.T, sub, email, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   sub,
		"aud":   "authenticated",
		"email": email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["app_metadata"] = map[string]any{"role": role}
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

// GenerateTestJWTWithBearer returns the token with "Bearer " prefix for the Authorization header.
func GenerateTestJWTWithBearer(t *testing.T, sub, email, role string) string {
	return "Bearer " + GenerateTestJWT(t, sub, email, role)
}
