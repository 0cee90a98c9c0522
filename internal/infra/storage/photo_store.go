package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Travinkel/belsign-photo-doc-sub006/internal/core/port"
	"github.com/Travinkel/belsign-photo-doc-sub006/internal/infra/config"
)

const defaultPresignTTL = 15 * time.Minute

// ErrEmptyObjectKey is returned when a photo has no stored binary.
var ErrEmptyObjectKey = errors.New("storage: object key is required")

// PhotoStore resolves photo binaries kept in a MinIO bucket.
type PhotoStore struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewPhotoStore builds a MinIO client from cfg. No request is made until used.
func NewPhotoStore(cfg config.StorageSettings) (*PhotoStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}

	return &PhotoStore{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

// PresignedURL returns a time-limited GET URL for objectKey.
func (s *PhotoStore) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	objectKey = strings.TrimPrefix(strings.TrimSpace(objectKey), "/")
	if objectKey == "" {
		return "", ErrEmptyObjectKey
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}

// HealthCheck verifies the photo bucket exists.
func (s *PhotoStore) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

var _ port.PhotoObjectStore = (*PhotoStore)(nil)
