// Package s3source loads the churn table from a CSV object in Amazon S3.
package s3source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/pkg/models"
)

// ObjectAPI is the subset of the S3 client the source uses.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Config holds S3 source configuration.
type Config struct {
	Bucket  string
	Key     string
	Region  string
	Profile string
	Schema  dataset.Schema
}

// Source reads one CSV object.
type Source struct {
	client ObjectAPI
	bucket string
	key    string
	schema dataset.Schema
	logger *slog.Logger
}

// Open builds an S3 client from the default AWS credential chain.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("s3 source requires bucket and key")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return New(s3.NewFromConfig(awsCfg), cfg, logger), nil
}

// New wraps an existing client.
func New(client ObjectAPI, cfg Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client: client,
		bucket: cfg.Bucket,
		key:    cfg.Key,
		schema: cfg.Schema,
		logger: logger,
	}
}

// Load downloads and parses the object.
func (s *Source) Load(ctx context.Context) (*dataset.View, error) {
	start := time.Now()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get s3://%s/%s: %v", models.ErrDataLoad, s.bucket, s.key, err)
	}
	defer out.Body.Close()

	view, err := dataset.Parse(out.Body, s.schema)
	if err != nil {
		return nil, fmt.Errorf("loading s3://%s/%s: %w", s.bucket, s.key, err)
	}

	s.logger.Info("loaded churn table",
		"bucket", s.bucket,
		"key", s.key,
		"row_count", view.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return view, nil
}

// Identity includes the object's ETag so a replaced object is reloaded.
func (s *Source) Identity(ctx context.Context) (string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return "", fmt.Errorf("%w: head s3://%s/%s: %v", models.ErrDataLoad, s.bucket, s.key, err)
	}
	return fmt.Sprintf("s3:%s/%s:%s", s.bucket, s.key, aws.ToString(out.ETag)), nil
}

// Close is a no-op; the S3 client holds no connections that need closing.
func (s *Source) Close() error {
	return nil
}
