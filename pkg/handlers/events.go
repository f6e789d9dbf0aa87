package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/cache"
)

const (
	eventBufferSize   = 32
	keepaliveInterval = 25 * time.Second
)

// InvalidationSource is the subscription surface of the query cache.
type InvalidationSource interface {
	Subscribe(fn func(cache.Event)) (unsubscribe func())
}

// EventsHandler streams the caller's cache invalidations over SSE so the
// dashboard can refetch stale collections.
type EventsHandler struct {
	source    InvalidationSource
	keepalive time.Duration
	logger    *zap.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(source InvalidationSource, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{source: source, keepalive: keepaliveInterval, logger: logger}
}

// RegisterRoutes registers the events handler's routes on the given mux.
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/events", authMiddleware.RequireAuth(h.Stream))
}

// Stream handles GET /api/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported")
		if err := ErrorResponse(w, http.StatusInternalServerError, "sse_unsupported", "SSE not supported"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan cache.Event, eventBufferSize)
	unsubscribe := h.source.Subscribe(func(e cache.Event) {
		if e.Key.UserID != userID {
			return
		}
		select {
		case events <- e:
		default:
			// Slow client; the next invalidation of the same key supersedes this one.
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case e := <-events:
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("Failed to marshal event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: invalidate\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
