// Package manuals manages equipment manual files: object storage for the file
// content, the metadata catalog, and a scored search over the catalog.
package manuals

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultURLExpiry bounds how long a presigned download link stays valid.
const DefaultURLExpiry = 15 * time.Minute

// ObjectStore is the file storage surface for manual content.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, key string) error
}

// ObjectStoreOpts holds configuration for the S3-compatible object store.
type ObjectStoreOpts struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ObjectStoreOption configures the object store.
type ObjectStoreOption func(*ObjectStoreOpts)

// WithEndpoint sets the S3 endpoint host:port.
func WithEndpoint(endpoint string) ObjectStoreOption {
	return func(o *ObjectStoreOpts) { o.Endpoint = endpoint }
}

// WithCredentials sets the S3 access and secret keys.
func WithCredentials(accessKey, secretKey string) ObjectStoreOption {
	return func(o *ObjectStoreOpts) {
		o.AccessKey = accessKey
		o.SecretKey = secretKey
	}
}

// WithBucket sets the bucket manual files are stored in.
func WithBucket(bucket string) ObjectStoreOption {
	return func(o *ObjectStoreOpts) { o.Bucket = bucket }
}

// WithSSL enables TLS for the S3 connection.
func WithSSL(useSSL bool) ObjectStoreOption {
	return func(o *ObjectStoreOpts) { o.UseSSL = useSSL }
}

// MinioStore stores manual files in an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the S3 endpoint and ensures the bucket exists.
// Configuration falls back to S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, and
// S3_BUCKET environment variables.
func NewMinioStore(ctx context.Context, opts ...ObjectStoreOption) (*MinioStore, error) {
	var cfg ObjectStoreOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv("S3_ENDPOINT")
	}
	if cfg.AccessKey == "" {
		cfg.AccessKey = os.Getenv("S3_ACCESS_KEY")
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = os.Getenv("S3_SECRET_KEY")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = os.Getenv("S3_BUCKET")
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("object store endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		slog.Error("Failed to create S3 client", "error", err, "endpoint", cfg.Endpoint)
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		slog.Error("Failed to check bucket", "error", err, "bucket", cfg.Bucket)
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			slog.Error("Failed to create bucket", "error", err, "bucket", cfg.Bucket)
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		slog.Info("created manuals bucket", "bucket", cfg.Bucket)
	}
	slog.Debug("object store initialized", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads a manual file under the given object key.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		slog.Error("object upload failed", "error", err, "key", key)
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	slog.Debug("object uploaded", "key", key, "size", size)
	return nil
}

// PresignedURL returns a time-limited download link for an object.
func (m *MinioStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, url.Values{})
	if err != nil {
		slog.Error("presigning object URL failed", "error", err, "key", key)
		return "", fmt.Errorf("failed to presign object %s: %w", key, err)
	}
	return u.String(), nil
}

// Remove deletes an object from the bucket.
func (m *MinioStore) Remove(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		slog.Error("object removal failed", "error", err, "key", key)
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}
	slog.Debug("object removed", "key", key)
	return nil
}
