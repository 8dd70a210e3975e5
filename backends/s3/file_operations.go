package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/errs"
)

// Get opens an object for reading
func (a *S3Adapter) Get(ctx context.Context, key string, opts backends.GetOptions) (*backends.Object, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(a.bucketName),
		Key:    aws.String(key),
	}
	if rng := rangeHeader(opts); rng != "" {
		input.Range = aws.String(rng)
	}

	result, err := a.client.GetObjectWithContext(ctx, input)
	if err != nil {
		// a range starting past the end of an empty object is an empty read
		if isInvalidRange(err) {
			return &backends.Object{
				ReadCloser: io.NopCloser(bytes.NewReader(nil)),
				Info:       backends.ObjectInfo{Key: key},
			}, nil
		}
		return nil, mapError("get", key, err)
	}

	info := backends.ObjectInfo{
		Key:          key,
		Size:         aws.Int64Value(result.ContentLength),
		ContentType:  aws.StringValue(result.ContentType),
		ETag:         aws.StringValue(result.ETag),
		LastModified: aws.TimeValue(result.LastModified),
	}

	a.logger.Debug("Object opened from S3",
		zap.String("bucket", a.bucketName),
		zap.String("key", key),
		zap.String("range", aws.StringValue(input.Range)))

	return &backends.Object{ReadCloser: result.Body, Info: info}, nil
}

func rangeHeader(opts backends.GetOptions) string {
	switch {
	case opts.Length > 0:
		return fmt.Sprintf("bytes=%d-%d", opts.Offset, opts.Offset+opts.Length-1)
	case opts.Offset > 0:
		return fmt.Sprintf("bytes=%d-", opts.Offset)
	}
	return ""
}

// Put uploads an object, streaming large bodies in parts
func (a *S3Adapter) Put(ctx context.Context, key string, r io.Reader, size int64, opts backends.PutOptions) error {
	if key == "" {
		return errs.New(errs.KindInvalidInput, "object key cannot be empty")
	}

	input := &s3manager.UploadInput{
		Bucket: aws.String(a.bucketName),
		Key:    aws.String(key),
		Body:   r,
	}

	// Set server-side encryption if configured
	if a.serverSideEncryption != "" {
		input.ServerSideEncryption = aws.String(a.serverSideEncryption)
	}
	if opts.ACL != "" {
		input.ACL = aws.String(opts.ACL)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}

	if _, err := a.uploader.UploadWithContext(ctx, input); err != nil {
		return mapError("put", key, err)
	}

	a.logger.Debug("Object written to S3",
		zap.String("bucket", a.bucketName),
		zap.String("key", key),
		zap.Int64("size", size))

	return nil
}

// Copy duplicates an object server-side
func (a *S3Adapter) Copy(ctx context.Context, srcKey, dstKey string, opts backends.PutOptions) error {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(a.bucketName),
		Key:        aws.String(dstKey),
		CopySource: aws.String(a.copySource(srcKey)),
	}
	if a.serverSideEncryption != "" {
		input.ServerSideEncryption = aws.String(a.serverSideEncryption)
	}
	if opts.ACL != "" {
		input.ACL = aws.String(opts.ACL)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
		input.MetadataDirective = aws.String(s3.MetadataDirectiveReplace)
	}

	if _, err := a.client.CopyObjectWithContext(ctx, input); err != nil {
		return mapError("copy", srcKey, err)
	}

	a.logger.Debug("Object copied in S3",
		zap.String("bucket", a.bucketName),
		zap.String("src", srcKey),
		zap.String("dst", dstKey))

	return nil
}

// Delete removes an object
func (a *S3Adapter) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError("delete", key, err)
	}

	a.logger.Debug("Object deleted from S3",
		zap.String("bucket", a.bucketName),
		zap.String("key", key))

	return nil
}

// Exists reports whether an object with exactly this key is stored
func (a *S3Adapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		mapped := mapError("head", key, err)
		if errs.IsNotFound(mapped) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}
