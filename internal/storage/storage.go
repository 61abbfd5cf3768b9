// Package storage writes cell snapshots to S3-compatible object storage (MinIO in
// development) and hands out presigned download links for them.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotConfigured is returned by LoadConfig when S3_ENDPOINT is unset.
var ErrNotConfigured = errors.New("S3_ENDPOINT environment variable is not set")

// Service stores export snapshots in an S3-compatible bucket.
type Service interface {
	// PutObject uploads body under key.
	PutObject(ctx context.Context, key string, body []byte, contentType string) error

	// PresignDownload returns a GET URL for key valid for ttl.
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)

	// EnsureBucket creates the configured bucket when missing.
	EnsureBucket(ctx context.Context) error

	// Health reports whether the bucket is reachable.
	Health(ctx context.Context) error
}

// Config holds the object storage connection settings.
type Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
}

// LoadConfig reads S3_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Endpoint:       strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		PublicEndpoint: strings.TrimSpace(os.Getenv("S3_PUBLIC_ENDPOINT")),
		AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		SecretKey:      os.Getenv("S3_SECRET_KEY"),
		Bucket:         os.Getenv("S3_BUCKET_NAME"),
		Region:         os.Getenv("S3_REGION"),
		UseSSL:         os.Getenv("S3_USE_SSL") == "true",
	}

	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("S3_ACCESS_KEY environment variable is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("S3_SECRET_KEY environment variable is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "cellfinder-exports"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PublicEndpoint == "" {
		cfg.PublicEndpoint = cfg.Endpoint
	}

	return cfg, nil
}

// endpointURL prefixes host with the configured scheme.
func (c *Config) endpointURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	if c.UseSSL {
		return "https://" + host
	}
	return "http://" + host
}

type service struct {
	client          *s3.Client
	publicPresigner *s3.PresignClient
	bucketName      string
}

// New connects to the bucket described by cfg and creates it if needed.
func New(ctx context.Context, cfg *Config) (Service, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	newClient := func(host string) *s3.Client {
		return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.endpointURL(host))
			o.UsePathStyle = true
		})
	}

	client := newClient(cfg.Endpoint)

	// Presigned links are handed to clients outside the cluster, so they are
	// signed against the public host.
	publicPresigner := s3.NewPresignClient(client)
	if cfg.PublicEndpoint != cfg.Endpoint {
		slog.Info("Using public endpoint for presigned URLs", "endpoint", cfg.PublicEndpoint)
		publicPresigner = s3.NewPresignClient(newClient(cfg.PublicEndpoint))
	}

	s := &service{
		client:          client,
		publicPresigner: publicPresigner,
		bucketName:      cfg.Bucket,
	}

	if err := s.EnsureBucket(ctx); err != nil {
		slog.Warn("Failed to ensure bucket exists", "bucket", cfg.Bucket, "error", err)
	}

	return s, nil
}

// EnsureBucket is a HeadBucket followed by CreateBucket on failure.
func (s *service) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	slog.Info("Created S3 bucket", "bucket", s.bucketName)
	return nil
}

// PutObject uploads body under key.
func (s *service) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("object key cannot be empty")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	return nil
}

// PresignDownload signs against the public endpoint so links work outside the cluster.
func (s *service) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key cannot be empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("TTL must be positive")
	}

	request, err := s.publicPresigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL for key %s: %w", key, err)
	}

	return request.URL, nil
}

// Health reports whether the bucket is reachable.
func (s *service) Health(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	if err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}

	return nil
}
