package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
	baseURL  string
	acl      types.ObjectCannedACL
}

type S3Options struct {
	Region        string
	Bucket        string
	Endpoint      string // custom endpoint (MinIO, LocalStack); path-style addressing
	PublicBaseURL string
	PublicRead    bool // upload objects with the public-read canned ACL
}

func NewS3Store(ctx context.Context, o S3Options) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(o.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(opts *s3.Options) {
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
			opts.UsePathStyle = true
		}
	})
	st := &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   o.Bucket,
		baseURL:  s3BaseURL(o),
	}
	if o.PublicRead {
		st.acl = types.ObjectCannedACLPublicRead
	}
	return st, nil
}

func s3BaseURL(o S3Options) string {
	switch {
	case o.PublicBaseURL != "":
		return o.PublicBaseURL
	case o.Endpoint != "":
		return objectURL(o.Endpoint, o.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", o.Bucket, o.Region)
	}
}

func (s *S3Store) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         s.acl,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", name, err)
	}
	return objectURL(s.baseURL, name), nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", name, err)
	}
	return nil
}

func (s *S3Store) PresignURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", name, err)
	}
	return req.URL, nil
}
