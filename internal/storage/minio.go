package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures an S3-compatible store.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicBaseURL replaces the endpoint in returned URLs, e.g. a CDN.
	PublicBaseURL string
	// PresignExpiry, when set, makes Upload return a presigned GET URL
	// instead of a plain object URL.
	PresignExpiry time.Duration
}

// MinioStore uploads generated content to S3-compatible object storage.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	presign time.Duration
}

// NewMinioStore builds a MinioStore. It does not contact the endpoint; use
// EnsureBucket at startup for that.
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("storage: s3 endpoint is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: create s3 client: %w", err)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(client.EndpointURL().String(), "/") + "/" + url.PathEscape(opts.Bucket)
	}
	return &MinioStore{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: baseURL,
		presign: opts.PresignExpiry,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("storage: create bucket: %w", err)
	}
	return nil
}

// Upload puts data at key and returns the object URL.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	objectKey, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}
	if s.presign > 0 {
		u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.presign, url.Values{})
		if err != nil {
			return "", fmt.Errorf("storage: presign object: %w", err)
		}
		return u.String(), nil
	}
	return s.baseURL + "/" + escapeKey(objectKey), nil
}
