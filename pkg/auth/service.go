package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrNotAdmin             = errors.New("admin role required")
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	// ValidateRequest extracts and validates a JWT from the request.
	// It checks the Authorization header with "Bearer" scheme, then the
	// access_token query parameter (EventSource clients cannot set headers).
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireAdmin validates that the claims carry the admin role.
	RequireAdmin(claims *Claims) error
}

type authService struct {
	validator TokenValidator
	adminRole string
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService with the given validator and logger.
func NewAuthService(validator TokenValidator, adminRole string, logger *zap.Logger) AuthService {
	return &authService{
		validator: validator,
		adminRole: adminRole,
		logger:    logger,
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	var tokenString, tokenSource string

	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidAuthFormat
		}
		tokenString = parts[1]
		tokenSource = "header"
	} else if q := r.URL.Query().Get("access_token"); q != "" {
		tokenString = q
		tokenSource = "query"
	} else {
		s.logger.Debug("No JWT found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, "", ErrMissingAuthorization
	}

	claims, err := s.validator.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", tokenSource))
		return nil, "", err
	}

	return claims, tokenString, nil
}

func (s *authService) RequireAdmin(claims *Claims) error {
	if !claims.HasRole(s.adminRole) {
		return ErrNotAdmin
	}
	return nil
}

var _ AuthService = (*authService)(nil)
