package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go"
)

// Store is the object storage collaborator holding captured frames.
type Store interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// MinioStore stores frames in an S3-compatible bucket.
type MinioStore struct {
	s3        *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore connects to the storage endpoint. publicURL is the base URL
// under which bucket objects are served; when empty, it is derived from the
// endpoint.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, publicURL string) (*MinioStore, error) {
	svc, err := minio.New(endpoint, accessKey, secretKey, useSSL)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}
	return &MinioStore{
		s3:        svc,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket() error {
	exists, err := s.s3.BucketExists(s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.s3.MakeBucket(s.bucket, ""); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
	}
	return nil
}

func (s *MinioStore) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.s3.GetObjectWithContext(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", key, err)
	}
	return data, nil
}

func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.s3.PutObjectWithContext(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", key, err)
	}
	return nil
}

func (s *MinioStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key)
}
