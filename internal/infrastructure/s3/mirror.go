// Package s3 mirrors the model artifact to an S3 compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ticketguard/scoring/internal/errs"
)

// ObjectAPI is the subset of *s3.Client the mirror uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config locates the mirrored object.
type Config struct {
	Bucket string
	Key    string
	Region string
	// Endpoint is an optional custom endpoint (MinIO, LocalStack). Setting
	// it also switches to path-style addressing.
	Endpoint string
}

// Mirror implements artifact.Mirror on one S3 object.
type Mirror struct {
	client     ObjectAPI
	bucket     string
	key        string
	maxRetries int
}

// NewMirror builds a client from the default AWS credential chain.
func NewMirror(ctx context.Context, cfg Config) (*Mirror, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return NewMirrorWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Key), nil
}

// NewMirrorWithClient creates a mirror using a pre-configured client.
func NewMirrorWithClient(client ObjectAPI, bucket, key string) *Mirror {
	return &Mirror{client: client, bucket: bucket, key: key, maxRetries: 3}
}

// Put uploads data, replacing the mirrored artifact.
func (m *Mirror) Put(ctx context.Context, data []byte) error {
	err := m.retryWithBackoff(ctx, func() error {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.bucket),
			Key:         aws.String(m.key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/octet-stream"),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", m.bucket, m.key, err)
	}
	return nil
}

// Get downloads the mirrored artifact. A missing object is ArtifactNotFound.
func (m *Mirror) Get(ctx context.Context) ([]byte, error) {
	var data []byte
	err := m.retryWithBackoff(ctx, func() error {
		resp, err := m.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(m.key),
		})
		if err != nil {
			var noSuchKey *types.NoSuchKey
			if errors.As(err, &noSuchKey) {
				return errs.Wrap(errs.CodeArtifactNotFound, fmt.Sprintf("no artifact at s3://%s/%s", m.bucket, m.key), err)
			}
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		if errors.Is(err, errs.ErrArtifactNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("download s3://%s/%s: %w", m.bucket, m.key, err)
	}
	return data, nil
}

// retryWithBackoff executes the operation with exponential backoff retry.
func (m *Mirror) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil || errors.Is(lastErr, errs.ErrArtifactNotFound) {
			return lastErr
		}

		if attempt < m.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
