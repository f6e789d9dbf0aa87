package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/models"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

// MaintenanceHandler exposes admin-only operations that span every user:
// historical cleanup, the global timeout sweep and the audit trail.
type MaintenanceHandler struct {
	cleanup  services.CleanupService
	timeouts services.TimeoutService
	audit    services.AuditService
	logger   *zap.Logger
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(cleanup services.CleanupService, timeouts services.TimeoutService, auditService services.AuditService, logger *zap.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		cleanup:  cleanup,
		timeouts: timeouts,
		audit:    auditService,
		logger:   logger,
	}
}

// RegisterRoutes registers the maintenance routes. systemScope must provide
// an unscoped connection.
func (h *MaintenanceHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, systemScope ScopeMiddleware) {
	base := "/api/maintenance"

	mux.HandleFunc("GET "+base+"/cleanup/candidates", authMiddleware.RequireAdmin(systemScope(h.CleanupCandidates)))
	mux.HandleFunc("POST "+base+"/cleanup", authMiddleware.RequireAdmin(systemScope(h.RunCleanup)))
	mux.HandleFunc("POST "+base+"/timeouts/sweep", authMiddleware.RequireAdmin(systemScope(h.SweepTimeouts)))
	mux.HandleFunc("GET "+base+"/audit", authMiddleware.RequireAdmin(systemScope(h.ListAudit)))
}

// CleanupCandidates handles GET /api/maintenance/cleanup/candidates?older_than_days=N
func (h *MaintenanceHandler) CleanupCandidates(w http.ResponseWriter, r *http.Request) {
	days, ok := parseIntQuery(w, r, "older_than_days", h.logger)
	if !ok {
		return
	}

	candidates, err := h.cleanup.FetchCleanupCandidates(r.Context(), days)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to fetch cleanup candidates", zap.Int("older_than_days", days))
		return
	}

	writeData(w, h.logger, http.StatusOK, candidates)
}

// RunCleanup handles POST /api/maintenance/cleanup
// An empty body runs with the defaults.
func (h *MaintenanceHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	var opts models.CleanupOptions
	if r.ContentLength != 0 && !decodeJSON(w, r, &opts, h.logger) {
		return
	}

	result, err := h.cleanup.RunCleanup(r.Context(), opts)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to run cleanup",
			zap.Int("older_than_days", opts.OlderThanDays),
			zap.Bool("dry_run", opts.DryRun))
		return
	}

	writeData(w, h.logger, http.StatusOK, result)
}

// SweepTimeouts handles POST /api/maintenance/timeouts/sweep
func (h *MaintenanceHandler) SweepTimeouts(w http.ResponseWriter, r *http.Request) {
	results, err := h.timeouts.SweepAll(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to sweep timeouts")
		return
	}

	writeData(w, h.logger, http.StatusOK, results)
}

// ListAudit handles GET /api/maintenance/audit?entity_type=&entity_id=&action=&limit=
func (h *MaintenanceHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := parsePaging(r)
	filters := models.AuditFilters{
		EntityType: models.EntityKind(q.Get("entity_type")),
		Action:     q.Get("action"),
		Limit:      limit,
	}
	if raw := q.Get("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeBadRequest(w, h.logger, "invalid_entity_id", "Invalid entity ID format")
			return
		}
		filters.EntityID = &id
	}

	entries, err := h.audit.List(r.Context(), filters)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list audit entries")
		return
	}

	writeData(w, h.logger, http.StatusOK, entries)
}
