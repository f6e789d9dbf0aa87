package handlers

import (
	"net/http"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// ScopeMiddleware attaches a scoped database connection to the request.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// WithAPIProvenance wraps scope so that every handler behind it runs with
// dashboard provenance for the authenticated user.
func WithAPIProvenance(scope ScopeMiddleware) ScopeMiddleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return scope(func(w http.ResponseWriter, r *http.Request) {
			ctx := models.WithAPIProvenance(r.Context(), auth.GetUserIDFromContext(r.Context()))
			next(w, r.WithContext(ctx))
		})
	}
}
