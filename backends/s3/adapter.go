// Package s3 implements backends.Storage on Amazon S3 and S3-compatible
// endpoints using aws-sdk-go.
package s3

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/internal/errs"
)

// deleteBatchSize is the maximum number of keys per DeleteObjects request
const deleteBatchSize = 1000

// S3Adapter implements the backends.Storage interface for AWS S3
type S3Adapter struct {
	client               s3iface.S3API
	uploader             *s3manager.Uploader
	bucketName           string
	serverSideEncryption string
	logger               *zap.Logger
}

// NewS3Adapter creates a new S3 storage adapter
func NewS3Adapter(cfg config.SourceConfig, logger *zap.Logger) (*S3Adapter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	// Custom endpoints are S3-compatible servers that need path style keys
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.DisableSSL = aws.Bool(!cfg.UseSSL)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
		awsConfig.S3DisableContentMD5Validation = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	client := s3.New(sess)

	// Verify bucket access
	if _, err := client.HeadBucket(&s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access S3 bucket %s: %w", cfg.Bucket, err)
	}

	adapter := NewWithClient(client, cfg.Bucket, logger)
	adapter.serverSideEncryption = cfg.ServerSideEncryption
	return adapter, nil
}

// NewWithClient wraps an existing S3 client without verifying the bucket.
func NewWithClient(client s3iface.S3API, bucket string, logger *zap.Logger) *S3Adapter {
	return &S3Adapter{
		client:     client,
		uploader:   s3manager.NewUploaderWithClient(client),
		bucketName: bucket,
		logger:     logger,
	}
}

// Close closes any resources used by the S3 adapter
func (a *S3Adapter) Close() error {
	// No resources to close for S3
	return nil
}

// copySource builds the URL-encoded bucket/key value of x-amz-copy-source
func (a *S3Adapter) copySource(key string) string {
	segments := strings.Split(a.bucketName+"/"+key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// mapError translates an AWS error into an errs.Error of the matching kind
func mapError(op, key string, err error) error {
	if err == nil {
		return nil
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return errs.Wrap(errs.KindNotFound, fmt.Sprintf("%s %q: not found", op, key), err)
		case s3.ErrCodeNoSuchBucket:
			return errs.Wrap(errs.KindBackendFailure, fmt.Sprintf("%s %q: bucket does not exist", op, key), err)
		case request.CanceledErrorCode:
			return errs.Wrap(errs.KindBackendFailure, fmt.Sprintf("%s %q: canceled", op, key), err)
		}
	}

	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return errs.Wrap(errs.KindNotFound, fmt.Sprintf("%s %q: not found", op, key), err)
	}

	return errs.Wrap(errs.KindBackendFailure, fmt.Sprintf("S3 %s %q failed", op, key), err)
}

// isInvalidRange reports a ranged read past the end of an object
func isInvalidRange(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode() == http.StatusRequestedRangeNotSatisfiable || reqErr.Code() == "InvalidRange"
	}
	return false
}
