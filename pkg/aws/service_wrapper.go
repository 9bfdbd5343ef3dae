package aws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AwsServiceWrapperInterface allows to test AWS specific code based on the AWS services
type AwsServiceWrapperInterface interface {
	GetS3Object(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	RefreshClients()
}

var (
	initOnce sync.Once
	wrapper  *AwsServiceWrapper
	initErr  error
)

// AwsServiceWrapper is the implementation of AwsServiceWrapperInterface
// it wraps the actual AWS service call but has no additional functionality implemented
type AwsServiceWrapper struct {
	cfg      aws.Config
	s3Client *s3.Client

	maxS3ObjectSize int64         // Trust directories above this size are truncated
	defaultTimeout  time.Duration // Applied when the caller's context has no deadline
}

// NewAwsServiceWrapper loads the default AWS configuration once and returns
// the shared wrapper.
func NewAwsServiceWrapper() (*AwsServiceWrapper, error) {
	initOnce.Do(func() {
		cfg, err := config.LoadDefaultConfig(context.TODO(),
			config.WithRetryMaxAttempts(3),
		)
		if err != nil {
			slog.Error("Failed to load AWS config", "error", err)
			initErr = err
			return
		}

		wrapper = &AwsServiceWrapper{
			cfg:             cfg,
			s3Client:        s3.NewFromConfig(cfg),
			maxS3ObjectSize: 10 * 1024 * 1024,
			defaultTimeout:  30 * time.Second,
		}
	})

	return wrapper, initErr
}

// RefreshClients recreates AWS service clients, useful for long-running Lambda environments
// where clients might need refreshing periodically
func (s *AwsServiceWrapper) RefreshClients() {
	slog.Info("Refreshing AWS clients")
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRetryMaxAttempts(3),
	)
	if err != nil {
		slog.Error("Failed to refresh AWS config, keeping existing clients", slog.String("error", err.Error()))
		return
	}

	s.cfg = cfg
	s.s3Client = s3.NewFromConfig(cfg)

	slog.Info("AWS clients successfully refreshed")
}

// cancelOnClose releases the request context once the body has been consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (s *AwsServiceWrapper) GetS3Object(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	cancel := context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, s.defaultTimeout)
	}

	slog.Debug("Fetching S3 object",
		"bucket", bucket,
		"key", key,
	)

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", s.maxS3ObjectSize)),
	}

	result, err := s.s3Client.GetObject(ctx, input)
	if err != nil {
		slog.Error("Error fetching S3 object",
			slog.String("bucket", bucket),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		cancel()
		return nil, err
	}

	if result.ContentLength != nil && *result.ContentLength > s.maxS3ObjectSize {
		slog.Warn("S3 object exceeds maximum allowed size",
			slog.Int64("size", *result.ContentLength),
			slog.Int64("maxAllowed", s.maxS3ObjectSize),
			slog.String("bucket", bucket),
			slog.String("key", key),
		)
	}

	return cancelOnClose{ReadCloser: result.Body, cancel: cancel}, nil
}
