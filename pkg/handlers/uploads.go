package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/auth"
	"github.com/ekaya-inc/content-engine/pkg/services"
)

const (
	uploadFormField = "file"
	multipartMemory = 8 << 20
)

// UploadHandler handles file uploads for idea sources and derivative assets.
type UploadHandler struct {
	files          services.FileService
	derivatives    services.DerivativeService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewUploadHandler creates a new upload handler. maxUploadBytes bounds the
// request body.
func NewUploadHandler(files services.FileService, derivatives services.DerivativeService, maxUploadBytes int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		files:          files,
		derivatives:    derivatives,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers the upload handler's routes on the given mux.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/uploads/idea-files", authMiddleware.RequireAuth(h.UploadIdeaFile))
	mux.HandleFunc("DELETE /api/uploads/derivative-files", authMiddleware.RequireAuth(h.DeleteDerivativeFile))
	mux.HandleFunc("POST /api/derivatives/{id}/file", authMiddleware.RequireAuth(scope(h.AttachDerivativeFile)))
}

// UploadIdeaFile handles POST /api/uploads/idea-files (multipart, field "file").
// The returned path is used as the source data of a file idea.
func (h *UploadHandler) UploadIdeaFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	file, header, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	uploaded, err := h.files.UploadIdeaFile(r.Context(), userID, header.Filename, file)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to upload idea file", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusCreated, uploaded)
}

// DeleteDerivativeFile handles DELETE /api/uploads/derivative-files?path=...
func (h *UploadHandler) DeleteDerivativeFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		writeBadRequest(w, h.logger, "missing_path", "path is required")
		return
	}

	if err := h.files.DeleteDerivativeFile(r.Context(), userID, path); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete derivative file", zap.String("user_id", userID))
		return
	}

	writeData(w, h.logger, http.StatusOK, map[string]string{"path": path})
}

// AttachDerivativeFile handles POST /api/derivatives/{id}/file (multipart, field "file").
func (h *UploadHandler) AttachDerivativeFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	file, header, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	d, err := h.derivatives.AttachFile(r.Context(), userID, id, header.Filename, file)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to attach derivative file", zap.String("derivative_id", id.String()))
		return
	}

	writeData(w, h.logger, http.StatusOK, d)
}

// readUpload bounds the body and returns the "file" form part.
func (h *UploadHandler) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			if err := ErrorResponse(w, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload limit"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return nil, nil, false
		}
		writeBadRequest(w, h.logger, "invalid_upload", "Expected a multipart form upload")
		return nil, nil, false
	}
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		writeBadRequest(w, h.logger, "missing_file", "A file is required in the \"file\" field")
		return nil, nil, false
	}
	return file, header, true
}
