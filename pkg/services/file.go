package services

import (
	"context"
	"fmt"
	"io"

	"github.com/ekaya-inc/content-engine/pkg/apperrors"
	"github.com/ekaya-inc/content-engine/pkg/models"
)

// ObjectUploader is the storage surface FileService needs.
type ObjectUploader interface {
	Upload(ctx context.Context, bucket, userID, filename string, r io.Reader) (*models.UploadedFile, error)
	Delete(ctx context.Context, bucket, userID, path string) error
}

// FileService stores files for idea sources and derivative assets.
type FileService interface {
	UploadIdeaFile(ctx context.Context, userID, filename string, r io.Reader) (*models.UploadedFile, error)
	UploadDerivativeFile(ctx context.Context, userID, filename string, r io.Reader) (*models.UploadedFile, error)
	DeleteDerivativeFile(ctx context.Context, userID, path string) error
}

type fileService struct {
	store            ObjectUploader
	ideaBucket       string
	derivativeBucket string
}

// NewFileService creates a new FileService. A nil store makes every call
// return apperrors.ErrNotConfigured.
func NewFileService(store ObjectUploader, ideaBucket, derivativeBucket string) FileService {
	return &fileService{store: store, ideaBucket: ideaBucket, derivativeBucket: derivativeBucket}
}

var _ FileService = (*fileService)(nil)

func (s *fileService) UploadIdeaFile(ctx context.Context, userID, filename string, r io.Reader) (*models.UploadedFile, error) {
	return s.upload(ctx, s.ideaBucket, userID, filename, r)
}

func (s *fileService) UploadDerivativeFile(ctx context.Context, userID, filename string, r io.Reader) (*models.UploadedFile, error) {
	return s.upload(ctx, s.derivativeBucket, userID, filename, r)
}

func (s *fileService) DeleteDerivativeFile(ctx context.Context, userID, path string) error {
	if s.store == nil {
		return fmt.Errorf("file storage: %w", apperrors.ErrNotConfigured)
	}
	return s.store.Delete(ctx, s.derivativeBucket, userID, path)
}

func (s *fileService) upload(ctx context.Context, bucket, userID, filename string, r io.Reader) (*models.UploadedFile, error) {
	if s.store == nil {
		return nil, fmt.Errorf("file storage: %w", apperrors.ErrNotConfigured)
	}
	if filename == "" {
		return nil, apperrors.NewValidationError("file", "a file name is required")
	}
	return s.store.Upload(ctx, bucket, userID, filename, r)
}
