package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// AwsConsumerInterface encapsulates all actions performs with the AWS services
type AwsConsumerInterface interface {
	GetS3Object(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	ReadTrustDirectory(ctx context.Context, uri string) ([]byte, error)
}

// AwsConsumer is the implementation of AwsConsumerInterface
type AwsConsumer struct {
	AWS AwsServiceWrapperInterface
}

// NewAwsConsumer creates a new AwsConsumer
func NewAwsConsumer() (*AwsConsumer, error) {
	w, err := NewAwsServiceWrapper()
	if err != nil {
		return nil, fmt.Errorf("unable to initialise AWS services: %w", err)
	}
	return &AwsConsumer{AWS: w}, nil
}

// ParseS3URI splits an s3://bucket/key URI into its bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URI %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid S3 URI %q: scheme must be s3", uri)
	}

	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: bucket and key are required", uri)
	}
	return bucket, key, nil
}

// GetS3Object retrieves an object from S3
func (a *AwsConsumer) GetS3Object(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if bucket == "" {
		return nil, errors.New("bucket name cannot be empty")
	}

	if key == "" {
		return nil, errors.New("object key cannot be empty")
	}

	return a.AWS.GetS3Object(ctx, bucket, key)
}

// ReadTrustDirectory reads the raw trust directory document stored at an
// s3://bucket/key URI.
func (a *AwsConsumer) ReadTrustDirectory(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	content, err := a.GetS3Object(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get trust directory from S3: %w", err)
	}
	defer func() {
		if cerr := content.Close(); cerr != nil {
			slog.Error("Error closing S3 trust directory object", "error", cerr)
		}
	}()

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("unable to read trust directory from S3: %w", err)
	}

	if len(data) == 0 {
		return nil, errors.New("empty trust directory retrieved from S3")
	}

	slog.Debug("Read trust directory from S3",
		"bucket", bucket,
		"key", key,
		"size", len(data))
	return data, nil
}
