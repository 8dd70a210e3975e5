package core

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/internal/pathutil"
)

// RenameOptions controls RenameContainer.
type RenameOptions struct {
	// FullPath treats the new name as the complete destination key instead
	// of a sibling name under the old parent.
	FullPath bool
	// KeepOriginal leaves the old subtree in place, making the call a copy.
	KeepOriginal bool
}

// CreateContainer writes the zero-byte marker of folder name under parent.
func (s *Source) CreateContainer(ctx context.Context, name, parent string) error {
	const op = "directory_create"

	if strings.Trim(name, pathutil.Delimiter) == "" {
		return s.fail(ctx, op, "name", errs.New(errs.KindInvalidInput, "folder name cannot be empty"))
	}
	key := pathutil.JoinKey(s.resolve(parent), name) + pathutil.Delimiter

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return s.fail(ctx, op, "name", errs.Ensure(err, errs.KindBackendFailure, "failed to check folder"))
	}
	if exists {
		return s.fail(ctx, op, "file", errs.Newf(errs.KindAlreadyExists, "folder %q already exists", key))
	}

	if err := s.store.Put(ctx, key, bytes.NewReader(nil), 0, backends.PutOptions{ACL: s.cfg.ACL}); err != nil {
		return s.fail(ctx, op, "name", errs.Ensure(err, errs.KindBackendFailure, "failed to create folder "+key))
	}

	s.logger.Info("Folder created", zap.String("key", key))
	s.succeed(ctx, op, key)
	return nil
}

// RemoveContainer deletes every object under path. The folder exists when
// any key begins with its prefix, marker or not.
func (s *Source) RemoveContainer(ctx context.Context, path string) error {
	const op = "directory_remove"

	prefix := strings.Trim(s.clean(path), pathutil.Delimiter)
	if prefix == "" {
		return s.fail(ctx, op, "path", errs.New(errs.KindInvalidInput, "refusing to remove the source root"))
	}
	prefix += pathutil.Delimiter

	if err := s.removeTree(ctx, prefix); err != nil {
		return s.fail(ctx, op, "file", err)
	}

	s.succeed(ctx, op, prefix)
	return nil
}

func (s *Source) removeTree(ctx context.Context, prefix string) error {
	exists, err := s.prefixExists(ctx, prefix)
	if err != nil {
		return err
	}
	if !exists {
		return errs.Newf(errs.KindNotFound, "folder %q not found", prefix)
	}

	n, err := s.store.DeleteMatching(ctx, prefix)
	s.invalidatePrefix(prefix)
	if err != nil {
		return errs.Ensure(err, errs.KindBackendFailure, "failed to delete folder "+prefix)
	}

	s.logger.Info("Folder removed", zap.String("prefix", prefix), zap.Int("objects", n))
	return nil
}

// RenameContainer copies the subtree at oldPath to its new key and, unless
// KeepOriginal is set, removes the original afterwards. The original is
// kept whenever any copy failed.
func (s *Source) RenameContainer(ctx context.Context, oldPath, newName string, opts RenameOptions) error {
	const op = "directory_rename"

	if !s.cfg.FolderCopyAllowed() {
		return s.fail(ctx, op, "file", errs.Newf(errs.KindUnsupported, "folder copy is disabled on source %q", s.name))
	}

	src := pathutil.DirKey(s.clean(oldPath))
	if src == "" {
		return s.fail(ctx, op, "path", errs.New(errs.KindInvalidInput, "cannot rename the source root"))
	}

	dst := pathutil.JoinKey(newName)
	if !opts.FullPath {
		dst = pathutil.JoinKey(pathutil.Parent(src), newName)
	}
	dst = pathutil.DirKey(dst)

	switch {
	case dst == "":
		return s.fail(ctx, op, "name", errs.New(errs.KindInvalidInput, "new folder name cannot be empty"))
	case dst == src:
		return s.fail(ctx, op, "name", errs.Newf(errs.KindInvalidInput, "folder %q already has that name", src))
	case strings.HasPrefix(dst, src):
		return s.fail(ctx, op, "name", errs.Newf(errs.KindInvalidInput, "cannot move folder %q into itself", src))
	}

	exists, err := s.prefixExists(ctx, src)
	if err != nil {
		return s.fail(ctx, op, "file", err)
	}
	if !exists {
		return s.fail(ctx, op, "file", errs.Newf(errs.KindNotFound, "folder %q not found", src))
	}

	if result := s.copyDirectory(ctx, src, dst, 0); result.ErrorOrNil() != nil {
		return s.fail(ctx, op, "file", errs.Wrap(errs.KindBackendFailure, "failed to copy folder "+src+" to "+dst, result))
	}
	s.invalidatePrefix(dst)

	if !opts.KeepOriginal {
		if err := s.removeTree(ctx, src); err != nil {
			return s.fail(ctx, op, "file", err)
		}
	}

	s.logger.Info("Folder renamed",
		zap.String("from", src),
		zap.String("to", dst),
		zap.Bool("keep_original", opts.KeepOriginal))
	s.succeed(ctx, op, src)
	return nil
}

// copyDirectory copies the marker of src and every descendant to the same
// relative key under dst. Failures are collected and siblings still run.
func (s *Source) copyDirectory(ctx context.Context, src, dst string, depth int) *multierror.Error {
	var result *multierror.Error

	if depth > s.maxDepth {
		return multierror.Append(result, errs.Newf(errs.KindInvalidInput, "folder %q exceeds the maximum depth of %d", src, s.maxDepth))
	}

	putOpts := backends.PutOptions{ACL: s.cfg.ACL}
	if err := s.store.Copy(ctx, src, dst, putOpts); err != nil && !errs.IsNotFound(err) {
		result = multierror.Append(result, errs.Ensure(err, errs.KindBackendFailure, "failed to copy marker "+src))
	}

	files, dirs, err := s.list(ctx, src)
	if err != nil {
		return multierror.Append(result, err)
	}

	for _, dir := range dirs {
		if dir == src {
			continue
		}
		if sub := s.copyDirectory(ctx, dir, pathutil.RemapPrefix(dir, src, dst), depth+1); sub != nil {
			result = multierror.Append(result, sub.Errors...)
		}
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)
	for _, key := range files {
		if key == src {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			target := pathutil.RemapPrefix(key, src, dst)
			if err := s.store.Copy(ctx, key, target, putOpts); err != nil {
				mu.Lock()
				result = multierror.Append(result, errs.Ensure(err, errs.KindBackendFailure, "failed to copy "+key))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil && depth == 0 {
		result = multierror.Append(result, err)
	}
	return result
}
