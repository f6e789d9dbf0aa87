package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// ParseID extracts and validates the entity ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_id", "Invalid ID format", logger)
}

// ParseIdeaID extracts and validates the idea ID from the request path.
// Expects path parameter: iid
func ParseIdeaID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "iid", "invalid_idea_id", "Invalid idea ID format", logger)
}

// ParseContentItemID extracts and validates the content item ID from the request path.
// Expects path parameter: cid
func ParseContentItemID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "cid", "invalid_content_item_id", "Invalid content item ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// ParseIDList parses a comma-separated list of UUIDs from the named query
// parameter. Repeated parameters are also accepted.
func ParseIDList(w http.ResponseWriter, r *http.Request, param string, logger *zap.Logger) ([]uuid.UUID, bool) {
	var ids []uuid.UUID
	for _, raw := range r.URL.Query()[param] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				writeBadRequest(w, logger, "invalid_"+param, "Invalid ID in "+param+": "+part)
				return nil, false
			}
			ids = append(ids, id)
		}
	}
	return ids, true
}

// parsePaging reads limit and offset. Missing or malformed values fall back to
// the defaults; limit is capped.
func parsePaging(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageLimit)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// parseIntQuery reads an optional integer query parameter. A malformed value
// writes a 400 and returns false.
func parseIntQuery(w http.ResponseWriter, r *http.Request, param string, logger *zap.Logger) (int, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, logger, "invalid_parameters", param+" must be an integer")
		return 0, false
	}
	return v, true
}

// clientIP returns the first X-Forwarded-For hop, falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

// requireUserID returns the authenticated subject, writing a 401 when the
// request carries none.
func requireUserID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing user context"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return userID, true
}
