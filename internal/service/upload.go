package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/flicky/ezpc-api/internal/dto"
	"github.com/flicky/ezpc-api/internal/model"
	"github.com/flicky/ezpc-api/internal/storage"
)

type ImagePresigner interface {
	PresignUpload(ctx context.Context, filename, contentType string) (*storage.Upload, error)
}

type UploadService struct {
	images ImagePresigner
}

// NewUploadService builds the service. A nil images store disables uploads.
func NewUploadService(images ImagePresigner) *UploadService {
	return &UploadService{images: images}
}

func (s *UploadService) PresignProductImage(ctx context.Context, session model.Session, req dto.ImageUploadRequest) (*dto.ImageUploadResponse, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if req.Filename == "" || req.ContentType == "" {
		return nil, validationError("filename and content type are required")
	}
	if s.images == nil {
		return nil, fmt.Errorf("%w: image storage is not configured", ErrUpstream)
	}

	upload, err := s.images.PresignUpload(ctx, req.Filename, req.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return nil, validationError("%v", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return &dto.ImageUploadResponse{
		UploadURL: upload.UploadURL,
		PublicURL: upload.PublicURL,
		ExpiresAt: upload.ExpiresAt,
	}, nil
}
