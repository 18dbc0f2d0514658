package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/terrapper/poddigest/internal/config"
)

// S3Storage implements Storage over an S3-compatible backend (AWS S3 or a
// Cloudflare R2 bucket configured with a custom endpoint).
type S3Storage struct {
	client     *s3.Client
	bucket     string
	baseURL    string
	publicRead bool
}

// S3Config holds the bucket and credential settings for S3Storage.
type S3Config struct {
	Region      string
	Bucket      string
	AccessKey   string
	SecretKey   string
	EndpointURL string // R2: https://account-id.r2.cloudflarestorage.com
	BaseURL     string // public URL prefix, e.g. https://cdn.example.com
	PublicRead  bool
}

// NewS3Storage builds an S3Storage and verifies the bucket is reachable.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	var awsCfg aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey, cfg.SecretKey, "",
			)),
			awsconfig.WithRegion(cfg.Region),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	store := &S3Storage{
		client:     client,
		bucket:     cfg.Bucket,
		baseURL:    cfg.BaseURL,
		publicRead: cfg.PublicRead,
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("access bucket %s: %w", cfg.Bucket, err)
	}

	slog.Info("objectstore initialized", "bucket", cfg.Bucket, "endpoint", cfg.EndpointURL)
	return store, nil
}

// NewS3StorageFromConfig builds an S3Storage from package config, per
// internal/config's S3_* settings.
func NewS3StorageFromConfig(ctx context.Context) (*S3Storage, error) {
	if config.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required for s3 storage")
	}
	return NewS3Storage(ctx, S3Config{
		Region:      config.S3Region,
		Bucket:      config.S3Bucket,
		AccessKey:   config.S3AccessKey,
		SecretKey:   config.S3SecretKey,
		EndpointURL: config.S3EndpointURL,
		BaseURL:     config.S3BaseURL,
		PublicRead:  config.S3PublicRead,
	})
}

func (s *S3Storage) Put(ctx context.Context, key string, body io.Reader, contentType string, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     body,
		Metadata: metadata,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if s.publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		return wrapErr(err, "put %s", key)
	}
	return nil
}

func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, wrapErr(err, "get %s", key)
	}
	return out.Body, nil
}

func (s *S3Storage) Head(ctx context.Context, key string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, wrapErr(err, "head %s", key)
	}
	info := ObjectInfo{}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	return info, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return wrapErr(err, "delete %s", key)
	}
	return nil
}

func (s *S3Storage) PublicURL(ctx context.Context, key string) string {
	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.baseURL, "/"), key)
	}
	presign := s3.NewPresignClient(s.client)
	req, err := presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = time.Hour })
	if err != nil {
		slog.Error("presign failed", "key", key, "error", err)
		return ""
	}
	return req.URL
}

// wrapErr classifies an AWS SDK error as transient (network timeout/5xx) or returns
// it verbatim when it is clearly permanent (e.g. access denied).
func wrapErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() >= 500 {
		return &TransientError{Err: fmt.Errorf("%s: %w", msg, err)}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Err: fmt.Errorf("%s: %w", msg, err)}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
