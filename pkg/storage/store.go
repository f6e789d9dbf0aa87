// Package storage writes uploaded files to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/metrics"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// ObjectStore is the subset of an S3 client the file store needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	RemoveObject(ctx context.Context, bucket, key string) error
}

// FileStore stores user uploads under <user_id>/<unix_ms>_<sanitized name>.
type FileStore struct {
	objects       ObjectStore
	publicBaseURL string
	maxBytes      int64
	now           func() time.Time
	logger        *zap.Logger
}

// NewFileStore creates a FileStore. maxBytes <= 0 disables the size limit.
func NewFileStore(objects ObjectStore, publicBaseURL string, maxBytes int64, logger *zap.Logger) *FileStore {
	return &FileStore{
		objects:       objects,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxBytes:      maxBytes,
		now:           time.Now,
		logger:        logger.Named("storage"),
	}
}

// Upload writes r to bucket for userID. The MIME type is detected from content.
func (s *FileStore) Upload(ctx context.Context, bucket, userID, filename string, r io.Reader) (*models.UploadedFile, error) {
	if userID == "" {
		return nil, fmt.Errorf("upload requires a user id")
	}

	limit := s.maxBytes
	if limit <= 0 {
		limit = 1<<63 - 2
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.NewValidationError("file", fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes))
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("file", "file is empty")
	}

	contentType := mimetype.Detect(data).String()
	path := s.ObjectPath(userID, filename)

	if err := s.objects.PutObject(ctx, bucket, path, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("store %s/%s: %w", bucket, path, err)
	}
	metrics.RecordUpload(bucket, int64(len(data)))

	s.logger.Debug("Stored upload",
		zap.String("bucket", bucket),
		zap.String("path", path),
		zap.String("type", contentType),
		zap.Int("size", len(data)))

	return &models.UploadedFile{
		Path:         path,
		Size:         int64(len(data)),
		Type:         contentType,
		OriginalName: filename,
		PublicURL:    s.PublicURL(bucket, path),
	}, nil
}

// ObjectPath returns the key an upload of filename by userID is stored under.
func (s *FileStore) ObjectPath(userID, filename string) string {
	return fmt.Sprintf("%s/%d_%s", userID, s.now().UnixMilli(), SanitizeFilename(filename))
}

// PublicURL returns <public base>/<bucket>/<path>.
func (s *FileStore) PublicURL(bucket, path string) string {
	return s.publicBaseURL + "/" + bucket + "/" + strings.TrimLeft(path, "/")
}

// Delete removes an object. Only objects under the user's prefix may be removed.
func (s *FileStore) Delete(ctx context.Context, bucket, userID, path string) error {
	if !strings.HasPrefix(path, userID+"/") {
		return fmt.Errorf("object %s: %w", path, apperrors.ErrForbidden)
	}
	if err := s.objects.RemoveObject(ctx, bucket, path); err != nil {
		return fmt.Errorf("remove %s/%s: %w", bucket, path, err)
	}
	return nil
}
