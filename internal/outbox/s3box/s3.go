// Package s3box implements an Outbox that stores documents as S3 objects.
package s3box

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/shineum/mandrill-dm/internal/outbox"
)

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// Config holds the configuration for creating an S3 outbox.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// PutObjectAPI is the interface for the S3 PutObject operation.
// Used for testing with mock implementations.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Outbox writes each document to bucket/prefix/key.
type Outbox struct {
	bucket     string
	prefix     string
	client     PutObjectAPI
	retryDelay time.Duration
}

// New creates an S3 outbox with the given configuration. Static
// credentials are used when both keys are set; otherwise the default AWS
// credential chain applies.
func New(ctx context.Context, cfg Config) (*Outbox, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(cfg.Bucket, cfg.Prefix, s3.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates an S3 outbox with a custom client, used for testing.
func NewWithClient(bucket, prefix string, client PutObjectAPI) *Outbox {
	return &Outbox{
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		client:     client,
		retryDelay: baseRetryDelay,
	}
}

// Put uploads the document. Throttling and service errors are retried
// with exponential backoff; all other failures return immediately.
func (o *Outbox) Put(ctx context.Context, key string, doc []byte) error {
	if !outbox.ValidKey(key) {
		return outbox.NewError(o.Name(), key, outbox.ReasonInvalidKey, nil)
	}

	objectKey := o.objectKey(key)
	var lastErr *outbox.Error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying S3 PutObject",
				"attempt", attempt,
				"max_retries", maxRetries,
				"key", objectKey,
			)
			if err := sleepWithContext(ctx, o.backoffDelay(attempt)); err != nil {
				return outbox.NewError(o.Name(), key, lastErr.Reason, err)
			}
		}

		_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(o.bucket),
			Key:         aws.String(objectKey),
			Body:        bytes.NewReader(doc),
			ContentType: aws.String("application/json"),
		})
		if err == nil {
			return nil
		}

		lastErr = outbox.NewError(o.Name(), key, classify(err), err)
		slog.Warn("S3 API error",
			"attempt", attempt,
			"reason", lastErr.Reason,
			"error", err,
		)
		if !retryable(lastErr.Reason) {
			return lastErr
		}
	}

	return lastErr
}

// Name returns the outbox name.
func (o *Outbox) Name() string {
	return "s3"
}

func (o *Outbox) objectKey(key string) string {
	if o.prefix == "" {
		return key
	}
	return path.Join(o.prefix, key)
}

func (o *Outbox) backoffDelay(attempt int) time.Duration {
	delay := o.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// classify maps an S3 error code onto an outbox failure reason.
func classify(err error) outbox.ErrorReason {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
			return outbox.ReasonAccessDenied
		case "NoSuchBucket":
			return outbox.ReasonNotFound
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded":
			return outbox.ReasonThrottled
		case "InternalError", "ServiceUnavailable":
			return outbox.ReasonService
		case "InvalidBucketName", "KeyTooLongError":
			return outbox.ReasonInvalidKey
		}
	}
	return outbox.ReasonUnknown
}

func retryable(reason outbox.ErrorReason) bool {
	return reason == outbox.ReasonThrottled || reason == outbox.ReasonService
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
