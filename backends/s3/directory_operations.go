package s3

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/errs"
)

// List enumerates one listing level, following continuation tokens
func (a *S3Adapter) List(ctx context.Context, opts backends.ListOptions) (*backends.ListResult, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucketName),
		Prefix: aws.String(opts.Prefix),
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.MaxKeys > 0 {
		input.MaxKeys = aws.Int64(int64(opts.MaxKeys))
	}

	result := &backends.ListResult{}

	for {
		page, err := a.client.ListObjectsV2WithContext(ctx, input)
		if err != nil {
			return nil, mapError("list", opts.Prefix, err)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix != nil {
				result.CommonPrefixes = append(result.CommonPrefixes, *cp.Prefix)
			}
		}

		for _, object := range page.Contents {
			if object.Key == nil {
				continue
			}
			result.Objects = append(result.Objects, backends.ObjectInfo{
				Key:          *object.Key,
				Size:         aws.Int64Value(object.Size),
				ETag:         strings.Trim(aws.StringValue(object.ETag), `"`),
				LastModified: aws.TimeValue(object.LastModified),
			})
		}

		if opts.MaxKeys > 0 && len(result.Objects)+len(result.CommonPrefixes) >= opts.MaxKeys {
			break
		}
		if !aws.BoolValue(page.IsTruncated) || page.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}

	return result, nil
}

// DeleteMatching removes every key under prefix in batches
func (a *S3Adapter) DeleteMatching(ctx context.Context, prefix string) (int, error) {
	listing, err := a.List(ctx, backends.ListOptions{Prefix: prefix})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(listing.Objects); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(listing.Objects) {
			end = len(listing.Objects)
		}

		ids := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, obj := range listing.Objects[start:end] {
			ids = append(ids, &s3.ObjectIdentifier{Key: aws.String(obj.Key)})
		}

		out, err := a.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(a.bucketName),
			Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, mapError("delete_matching", prefix, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return deleted + len(ids) - len(out.Errors), errs.Newf(errs.KindBackendFailure,
				"failed to delete %d objects under %q, first %q: %s",
				len(out.Errors), prefix, aws.StringValue(first.Key), aws.StringValue(first.Message))
		}
		deleted += len(ids)
	}

	a.logger.Debug("Objects deleted from S3",
		zap.String("bucket", a.bucketName),
		zap.String("prefix", prefix),
		zap.Int("count", deleted))

	return deleted, nil
}
