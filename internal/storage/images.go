// Package storage hands out presigned upload URLs for product images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrUnsupportedType is returned for content types that are not images.
var ErrUnsupportedType = errors.New("unsupported image content type")

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
	PresignExpiry time.Duration
}

type Upload struct {
	UploadURL string
	PublicURL string
	ExpiresAt time.Time
}

type ImageStore struct {
	client *minio.Client
	cfg    Config
}

func NewImageStore(cfg Config) (*ImageStore, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	if cfg.PublicBaseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicBaseURL = scheme + "://" + cfg.Endpoint
	}
	return &ImageStore{client: client, cfg: cfg}, nil
}

func (s *ImageStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// PresignUpload returns a URL the browser can PUT the image to, and the URL
// the image will be served from afterwards.
func (s *ImageStore) PresignUpload(ctx context.Context, filename, contentType string) (*Upload, error) {
	object, err := objectName(filename, contentType)
	if err != nil {
		return nil, err
	}
	u, err := s.client.PresignedPutObject(ctx, s.cfg.Bucket, object, s.cfg.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &Upload{
		UploadURL: u.String(),
		PublicURL: publicURL(s.cfg.PublicBaseURL, s.cfg.Bucket, object),
		ExpiresAt: time.Now().UTC().Add(s.cfg.PresignExpiry),
	}, nil
}

func objectName(filename, contentType string) (string, error) {
	ext, ok := imageExtensions[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if given := strings.ToLower(path.Ext(filename)); given == ".jpeg" || given == ext {
		ext = given
	}
	return "products/" + uuid.NewString() + ext, nil
}

func publicURL(base, bucket, object string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + object
}
