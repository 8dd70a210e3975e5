// Package localfs implements backends.Storage on a local directory tree.
// Keys map to paths under the root; a key ending in "/" is a folder marker
// and maps to a directory.
package localfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/internal/pathutil"
)

// tempPrefix marks in-flight uploads so listings can hide them
const tempPrefix = ".mediasource-upload-"

// LocalFSAdapter implements the backends.Storage interface for local filesystem
type LocalFSAdapter struct {
	rootPath string
	logger   *zap.Logger
}

// NewLocalFSAdapter creates a new local filesystem adapter
func NewLocalFSAdapter(rootPath string, logger *zap.Logger) (*LocalFSAdapter, error) {
	// Ensure root path exists
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root path %s: %w", rootPath, err)
	}

	// Verify path is accessible
	if _, err := os.Stat(rootPath); err != nil {
		return nil, fmt.Errorf("root path %s is not accessible: %w", rootPath, err)
	}

	return &LocalFSAdapter{
		rootPath: rootPath,
		logger:   logger,
	}, nil
}

// resolve maps a key onto a path under the root
func (a *LocalFSAdapter) resolve(key string) (string, error) {
	if err := pathutil.ValidateKey(key); err != nil {
		return "", err
	}
	return pathutil.SafeJoin(a.rootPath, key)
}

// keyFor maps a path under the root back onto a key
func (a *LocalFSAdapter) keyFor(fullPath string, isDir bool) string {
	rel, err := filepath.Rel(a.rootPath, fullPath)
	if err != nil || rel == "." {
		return ""
	}
	key := filepath.ToSlash(rel)
	if isDir {
		key += "/"
	}
	return key
}

func objectInfo(key string, info os.FileInfo) backends.ObjectInfo {
	size := info.Size()
	if info.IsDir() {
		size = 0
	}
	return backends.ObjectInfo{
		Key:          key,
		Size:         size,
		ETag:         fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), size),
		LastModified: info.ModTime().UTC(),
	}
}

// Get opens a file for reading. A marker key opens an empty body.
func (a *LocalFSAdapter) Get(ctx context.Context, key string, opts backends.GetOptions) (*backends.Object, error) {
	fullPath, err := a.resolve(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, mapError("get", key, err)
	}

	if info.IsDir() {
		if !pathutil.IsDirKey(key) {
			return nil, errs.Newf(errs.KindNotFound, "object %q not found", key)
		}
		return &backends.Object{
			ReadCloser: io.NopCloser(bytes.NewReader(nil)),
			Info:       objectInfo(key, info),
		}, nil
	}
	if pathutil.IsDirKey(key) {
		return nil, errs.Newf(errs.KindNotFound, "folder marker %q not found", key)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, mapError("get", key, err)
	}

	var body io.ReadCloser = file
	if opts.Offset > 0 {
		if _, err := file.Seek(opts.Offset, io.SeekStart); err != nil {
			file.Close()
			return nil, errs.Wrap(errs.KindLocalIOFailure, "failed to seek "+key, err)
		}
	}
	if opts.Length > 0 {
		body = struct {
			io.Reader
			io.Closer
		}{io.LimitReader(file, opts.Length), file}
	}

	return &backends.Object{ReadCloser: body, Info: objectInfo(key, info)}, nil
}

// Put writes the body to a temporary file and renames it into place. A
// marker key creates the directory.
func (a *LocalFSAdapter) Put(ctx context.Context, key string, r io.Reader, size int64, opts backends.PutOptions) error {
	if key == "" {
		return errs.New(errs.KindInvalidInput, "object key cannot be empty")
	}

	fullPath, err := a.resolve(key)
	if err != nil {
		return err
	}

	if pathutil.IsDirKey(key) {
		if err := os.MkdirAll(fullPath, 0755); err != nil {
			return mapError("mkdir", key, err)
		}
		a.logger.Debug("Directory created", zap.String("key", key))
		return nil
	}

	if info, err := os.Stat(fullPath); err == nil && info.IsDir() {
		return errs.Newf(errs.KindAlreadyExists, "%q exists as a directory", key)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return mapError("mkdir", key, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return mapError("put", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.KindLocalIOFailure, "failed to write file content for "+key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return mapError("put", key, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return mapError("put", key, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return mapError("put", key, err)
	}

	a.logger.Debug("File written", zap.String("key", key), zap.Int64("size", size))
	return nil
}

// Copy duplicates srcKey to dstKey
func (a *LocalFSAdapter) Copy(ctx context.Context, srcKey, dstKey string, opts backends.PutOptions) error {
	src, err := a.Get(ctx, srcKey, backends.GetOptions{})
	if err != nil {
		return err
	}
	defer src.Close()

	return a.Put(ctx, dstKey, src, src.Info.Size, opts)
}

// Delete removes a file or an empty directory. A marker of a non-empty
// directory is left in place, as the folder still exists through its
// children.
func (a *LocalFSAdapter) Delete(ctx context.Context, key string) error {
	fullPath, err := a.resolve(key)
	if err != nil {
		return err
	}

	if fullPath == filepath.Clean(a.rootPath) {
		return nil
	}

	info, err := os.Lstat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return mapError("delete", key, err)
	}
	if info.IsDir() != pathutil.IsDirKey(key) {
		return nil
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) || errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST) {
			return nil
		}
		return mapError("delete", key, err)
	}

	a.logger.Debug("Deleted", zap.String("key", key))
	return nil
}

// Exists reports whether a file (or, for marker keys, a directory) is stored
func (a *LocalFSAdapter) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := a.resolve(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, mapError("stat", key, err)
	}

	return info.IsDir() == pathutil.IsDirKey(key) || key == "", nil
}

// Close closes any resources used by the storage backend
func (a *LocalFSAdapter) Close() error {
	// No resources to close for local filesystem
	return nil
}

func mapError(op, key string, err error) error {
	switch {
	case os.IsNotExist(err):
		return errs.Wrap(errs.KindNotFound, fmt.Sprintf("%s %q: not found", op, key), err)
	case os.IsExist(err):
		return errs.Wrap(errs.KindAlreadyExists, fmt.Sprintf("%s %q: already exists", op, key), err)
	}
	return errs.Wrap(errs.KindLocalIOFailure, fmt.Sprintf("%s %q failed", op, key), err)
}

func hidden(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}
