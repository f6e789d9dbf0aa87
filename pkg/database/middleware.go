package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
)

// WithUserContext creates middleware that sets up a user-scoped DB connection.
// It runs AFTER auth middleware and uses the subject from JWT claims.
// The connection is automatically cleaned up after the handler returns.
func WithUserContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok || claims.Subject == "" {
				logger.Error("Missing subject in claims")
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing user context")
				return
			}

			scope, err := db.WithUser(r.Context(), claims.Subject)
			if err != nil {
				logger.Error("Failed to acquire user connection",
					zap.String("user_id", claims.Subject),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			ctx := SetUserScope(r.Context(), scope)
			next(w, r.WithContext(ctx))
		}
	}
}

// WithSystemContext is WithUserContext for admin-only maintenance routes that
// operate across all users.
func WithSystemContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scope, err := db.WithoutUser(r.Context())
			if err != nil {
				logger.Error("Failed to acquire system connection", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetUserScope(r.Context(), scope)))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
