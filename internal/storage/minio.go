package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore talks to any S3-compatible server through the MinIO SDK.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

type MinioOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	UseSSL        bool
	PublicBaseURL string
}

func NewMinioStore(ctx context.Context, o MinioOptions) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(o.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure:       o.UseSSL,
		Region:       o.Region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, o.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", o.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", o.Bucket)
	}
	return &MinioStore{client: client, bucket: o.Bucket, baseURL: minioBaseURL(endpoint, o)}, nil
}

func minioBaseURL(endpoint string, o MinioOptions) string {
	if o.PublicBaseURL != "" {
		return o.PublicBaseURL
	}
	scheme := "http"
	if o.UseSSL {
		scheme = "https"
	}
	return objectURL(scheme+"://"+endpoint, o.Bucket)
}

func (s *MinioStore) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio upload %s: %w", name, err)
	}
	return objectURL(s.baseURL, name), nil
}

func (s *MinioStore) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete %s: %w", name, err)
	}
	return nil
}

func (s *MinioStore) PresignURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("minio presign %s: %w", name, err)
	}
	return u.String(), nil
}
