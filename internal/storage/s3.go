package storage

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/flexprice/collections/internal/config"
	ierr "github.com/flexprice/collections/internal/errors"
	"github.com/flexprice/collections/internal/logger"
)

// S3Store archives files in one bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	logger *logger.Logger
}

// NewS3Store builds the client from s3 config. Static credentials are used when
// configured, otherwise the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg config.S3Config, log *logger.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, ierr.NewError("s3 bucket is required").
			WithHint("Set s3.bucket to archive bank files").
			Mark(ierr.ErrValidation)
	}

	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to load AWS config").
			Mark(ierr.ErrSystem)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	log.Infow("s3 file store initialized", "bucket", cfg.Bucket, "region", cfg.Region)
	return &S3Store{client: client, bucket: cfg.Bucket, logger: log}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to archive %s", key).
			Mark(ierr.ErrSystem)
	}
	s.logger.Debugw("archived file", "bucket", s.bucket, "key", key, "size", len(data))
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ierr.WithError(err).
				WithHintf("No archived file at %s", key).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHintf("Failed to read %s", key).
			Mark(ierr.ErrSystem)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Failed to read %s", key).
			Mark(ierr.ErrSystem)
	}
	return data, nil
}
