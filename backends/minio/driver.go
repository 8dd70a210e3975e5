// Package minio provides a MinIO implementation of backends.Storage.
//
// Usage:
//
//	store, err := minio.New(ctx, cfg, logger)
//	if err != nil { ... }
//	defer store.Close()
package minio

import (
	"bytes"
	"context"
	"io"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/internal/errs"
)

// Driver is a MinIO implementation of backends.Storage.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
	sse    encrypt.ServerSide
	logger *zap.Logger
}

// New connects to MinIO using the source configuration and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg config.SourceConfig, logger *zap.Logger) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to create minio client", err)
	}

	d := &Driver{client: client, bucket: cfg.Bucket, logger: logger}
	if strings.EqualFold(cfg.ServerSideEncryption, "AES256") {
		d.sse = encrypt.NewSSE()
	}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// Ping verifies the bucket exists and is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !ok {
		return errs.Newf(errs.KindNotFound, "bucket %q does not exist", d.bucket)
	}
	return nil
}

// Close is a no-op for MinIO; the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// List enumerates keys under opts.Prefix. Non-recursive listings return
// folder prefixes as keys ending in the delimiter, which are reported as
// CommonPrefixes.
func (d *Driver) List(ctx context.Context, opts backends.ListOptions) (*backends.ListResult, error) {
	if opts.Delimiter != "" && opts.Delimiter != "/" {
		return nil, errs.Newf(errs.KindUnsupported, "minio listing only supports the %q delimiter", "/")
	}

	listOpts := miniogo.ListObjectsOptions{
		Prefix:    opts.Prefix,
		Recursive: opts.Delimiter == "",
		MaxKeys:   opts.MaxKeys,
	}

	// Stop the listing goroutine when we break out early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := &backends.ListResult{}
	count := 0

	for obj := range d.client.ListObjects(ctx, d.bucket, listOpts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}

		if !listOpts.Recursive && obj.Key != opts.Prefix && strings.HasSuffix(obj.Key, "/") {
			result.CommonPrefixes = append(result.CommonPrefixes, obj.Key)
		} else {
			result.Objects = append(result.Objects, backends.ObjectInfo{
				Key:          obj.Key,
				Size:         obj.Size,
				ContentType:  obj.ContentType,
				ETag:         obj.ETag,
				LastModified: obj.LastModified,
			})
		}

		count++
		if opts.MaxKeys > 0 && count >= opts.MaxKeys {
			break
		}
	}

	return result, nil
}

// Get opens a streaming handle to the object at key.
// The caller MUST call Close after reading.
func (d *Driver) Get(ctx context.Context, key string, opts backends.GetOptions) (*backends.Object, error) {
	getOpts := miniogo.GetObjectOptions{}
	switch {
	case opts.Length > 0:
		if err := getOpts.SetRange(opts.Offset, opts.Offset+opts.Length-1); err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, "invalid range", err)
		}
	case opts.Offset > 0:
		if err := getOpts.SetRange(opts.Offset, 0); err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, "invalid range", err)
		}
	}

	obj, err := d.client.GetObject(ctx, d.bucket, key, getOpts)
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isInvalidRange(err) {
			return &backends.Object{
				ReadCloser: io.NopCloser(bytes.NewReader(nil)),
				Info:       backends.ObjectInfo{Key: key},
			}, nil
		}
		return nil, mapError(err, "failed to stat object after get")
	}

	return &backends.Object{
		ReadCloser: obj,
		Info: backends.ObjectInfo{
			Key:          key,
			Size:         stat.Size,
			ContentType:  stat.ContentType,
			ETag:         stat.ETag,
			LastModified: stat.LastModified,
		},
	}, nil
}

// Put uploads r under key. A negative size streams with multipart upload.
func (d *Driver) Put(ctx context.Context, key string, r io.Reader, size int64, opts backends.PutOptions) error {
	if key == "" {
		return errs.New(errs.KindInvalidInput, "object key cannot be empty")
	}

	putOpts := miniogo.PutObjectOptions{
		ContentType:          opts.ContentType,
		ServerSideEncryption: d.sse,
	}
	if opts.ACL != "" {
		putOpts.UserMetadata = map[string]string{"x-amz-acl": opts.ACL}
	}

	info, err := d.client.PutObject(ctx, d.bucket, key, r, size, putOpts)
	if err != nil {
		return mapError(err, "failed to put object")
	}

	d.logger.Debug("Object written to MinIO",
		zap.String("bucket", d.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size))

	return nil
}

// Copy duplicates srcKey to dstKey server-side.
func (d *Driver) Copy(ctx context.Context, srcKey, dstKey string, opts backends.PutOptions) error {
	dst := miniogo.CopyDestOptions{
		Bucket:     d.bucket,
		Object:     dstKey,
		Encryption: d.sse,
	}
	if opts.ACL != "" || opts.ContentType != "" {
		dst.ReplaceMetadata = true
		dst.UserMetadata = map[string]string{}
		if opts.ACL != "" {
			dst.UserMetadata["x-amz-acl"] = opts.ACL
		}
		if opts.ContentType != "" {
			dst.UserMetadata["Content-Type"] = opts.ContentType
		}
	}

	_, err := d.client.CopyObject(ctx, dst, miniogo.CopySrcOptions{Bucket: d.bucket, Object: srcKey})
	if err != nil {
		return mapError(err, "failed to copy object")
	}

	d.logger.Debug("Object copied in MinIO",
		zap.String("bucket", d.bucket),
		zap.String("src", srcKey),
		zap.String("dst", dstKey))

	return nil
}

// Delete removes key. Removing an absent key succeeds.
func (d *Driver) Delete(ctx context.Context, key string) error {
	if err := d.client.RemoveObject(ctx, d.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// DeleteMatching removes every key under prefix with batched requests.
func (d *Driver) DeleteMatching(ctx context.Context, prefix string) (int, error) {
	listing, err := d.List(ctx, backends.ListOptions{Prefix: prefix})
	if err != nil {
		return 0, err
	}

	objectsCh := make(chan miniogo.ObjectInfo, len(listing.Objects))
	for _, obj := range listing.Objects {
		objectsCh <- miniogo.ObjectInfo{Key: obj.Key}
	}
	close(objectsCh)

	failed := 0
	var firstErr error
	for rerr := range d.client.RemoveObjects(ctx, d.bucket, objectsCh, miniogo.RemoveObjectsOptions{}) {
		failed++
		if firstErr == nil {
			firstErr = rerr.Err
		}
	}

	deleted := len(listing.Objects) - failed
	if firstErr != nil {
		return deleted, mapError(firstErr, "failed to delete objects under "+prefix)
	}

	d.logger.Debug("Objects deleted from MinIO",
		zap.String("bucket", d.bucket),
		zap.String("prefix", prefix),
		zap.Int("count", deleted))

	return deleted, nil
}

// Exists reports whether an object with exactly this key is stored.
func (d *Driver) Exists(ctx context.Context, key string) (bool, error) {
	_, err := d.client.StatObject(ctx, d.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		mapped := mapError(err, "failed to stat object")
		if errs.IsNotFound(mapped) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}
