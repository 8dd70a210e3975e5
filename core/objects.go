package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/internal/pathutil"
)

// MovePoint tells MoveObject where the object lands relative to the target.
type MovePoint string

const (
	// MoveAppend places the object inside the target folder.
	MoveAppend MovePoint = "append"
	// MoveAbove and MoveBelow place the object next to the target.
	MoveAbove MovePoint = "above"
	MoveBelow MovePoint = "below"
)

// CreateObject writes a new object named name under path. It fails when
// the key is already taken.
func (s *Source) CreateObject(ctx context.Context, path, name, content string) error {
	const op = "file_create"

	key := pathutil.JoinKey(s.resolve(path), name)
	if key == "" || pathutil.Base(name) == "" {
		return s.fail(ctx, op, "name", errs.New(errs.KindInvalidInput, "file name cannot be empty"))
	}

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return s.fail(ctx, op, "name", errs.Ensure(err, errs.KindBackendFailure, "failed to check file"))
	}
	if exists {
		return s.fail(ctx, op, "file", errs.Newf(errs.KindAlreadyExists, "file %q already exists", key))
	}

	if err := s.put(ctx, key, content); err != nil {
		return s.fail(ctx, op, "name", err)
	}

	s.logger.Info("File created", zap.String("key", key))
	s.succeed(ctx, op, key)
	return nil
}

// UpdateObject overwrites path with content, creating it when absent.
func (s *Source) UpdateObject(ctx context.Context, path, content string) error {
	const op = "file_update"

	key := s.clean(path)
	if strings.Trim(key, pathutil.Delimiter) == "" {
		return s.fail(ctx, op, "name", errs.New(errs.KindInvalidInput, "file path cannot be empty"))
	}

	if err := s.put(ctx, key, content); err != nil {
		return s.fail(ctx, op, "name", err)
	}

	s.logger.Info("File updated", zap.String("key", key))
	s.succeed(ctx, op, key)
	return nil
}

func (s *Source) put(ctx context.Context, key, content string) error {
	body := strings.NewReader(content)
	if err := s.store.Put(ctx, key, body, int64(len(content)), s.putOptions(pathutil.Extension(key))); err != nil {
		return errs.Ensure(err, errs.KindBackendFailure, "failed to write "+key)
	}
	s.invalidate(key)
	return nil
}

// RenameObject copies oldPath to newName in the same folder and deletes the
// original. A failed delete leaves both keys in place.
func (s *Source) RenameObject(ctx context.Context, oldPath, newName string) error {
	const op = "file_rename"

	oldKey := s.clean(oldPath)
	newKey := pathutil.JoinKey(pathutil.Parent(oldKey), newName)
	if pathutil.Base(newName) == "" {
		return s.fail(ctx, op, "name", errs.New(errs.KindInvalidInput, "new file name cannot be empty"))
	}

	exists, err := s.store.Exists(ctx, oldKey)
	if err != nil {
		return s.fail(ctx, op, "file", errs.Ensure(err, errs.KindBackendFailure, "failed to check file"))
	}
	if !exists {
		return s.fail(ctx, op, "file", errs.Newf(errs.KindNotFound, "file %q not found", oldKey))
	}
	if newKey == oldKey {
		return nil
	}

	if err := s.relocate(ctx, oldKey, newKey); err != nil {
		return s.fail(ctx, op, "file", err)
	}

	s.logger.Info("File renamed", zap.String("from", oldKey), zap.String("to", newKey))
	s.succeed(ctx, op, oldKey)
	return nil
}

// relocate copies src to dst and removes src.
func (s *Source) relocate(ctx context.Context, src, dst string) error {
	if err := s.store.Copy(ctx, src, dst, s.putOptions(pathutil.Extension(dst))); err != nil {
		return errs.Ensure(err, errs.KindBackendFailure, "failed to copy "+src+" to "+dst)
	}
	s.invalidate(dst)

	if err := s.store.Delete(ctx, src); err != nil {
		return errs.Ensure(err, errs.KindBackendFailure, "failed to delete "+src)
	}
	s.invalidate(src)
	return nil
}

// MoveObject moves the file or folder from into the folder to, or next to
// the object to when point is above or below. Moves to "/" land at the top
// level.
func (s *Source) MoveObject(ctx context.Context, from, to string, point MovePoint) error {
	const op = "file_move"

	from = s.clean(from)
	to = s.clean(to)
	isDir := pathutil.IsDirKey(from)

	if isDir && !s.cfg.FolderCopyAllowed() {
		return s.fail(ctx, op, "file", errs.Newf(errs.KindUnsupported, "folder %q cannot be moved, folder copy is disabled", from))
	}

	exists, err := s.objectExists(ctx, from)
	if err != nil {
		return s.fail(ctx, op, "file", err)
	}
	if !exists {
		return s.fail(ctx, op, "file", errs.Newf(errs.KindNotFound, "%q not found", from))
	}

	target := pathutil.Base(from)
	if strings.Trim(to, pathutil.Delimiter) != "" {
		exists, err := s.objectExists(ctx, to)
		if err == nil && !exists && !pathutil.IsDirKey(to) {
			exists, err = s.prefixExists(ctx, pathutil.DirKey(to))
		}
		if err != nil {
			return s.fail(ctx, op, "file", err)
		}
		if !exists {
			return s.fail(ctx, op, "file", errs.Newf(errs.KindNotFound, "%q not found", to))
		}

		if point == MoveAbove || point == MoveBelow {
			target = pathutil.JoinKey(pathutil.Parent(to), pathutil.Base(from))
		} else {
			target = pathutil.JoinKey(to, pathutil.Base(from))
		}
	}

	if isDir {
		if pathutil.DirKey(target) == from {
			return nil
		}
		return s.RenameContainer(ctx, from, target, RenameOptions{FullPath: true})
	}

	if target == from {
		return nil
	}
	if err := s.relocate(ctx, from, target); err != nil {
		return s.fail(ctx, op, "file", err)
	}

	s.logger.Info("File moved", zap.String("from", from), zap.String("to", target))
	s.succeed(ctx, op, from)
	return nil
}

// objectExists checks files by exact key and folders by prefix.
func (s *Source) objectExists(ctx context.Context, key string) (bool, error) {
	if pathutil.IsDirKey(key) {
		return s.prefixExists(ctx, key)
	}
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return false, errs.Ensure(err, errs.KindBackendFailure, "failed to check "+key)
	}
	return exists, nil
}

// RemoveObject deletes the file at path.
func (s *Source) RemoveObject(ctx context.Context, path string) error {
	const op = "file_remove"

	key := s.clean(path)
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return s.fail(ctx, op, "file", errs.Ensure(err, errs.KindBackendFailure, "failed to check "+key))
	}
	if !exists {
		return s.fail(ctx, op, "file", errs.Newf(errs.KindNotFound, "file %q not found", key))
	}

	if err := s.store.Delete(ctx, key); err != nil {
		return s.fail(ctx, op, "file", errs.Ensure(err, errs.KindBackendFailure, "failed to delete "+key))
	}
	s.invalidate(key)

	s.logger.Info("File removed", zap.String("key", key))
	s.succeed(ctx, op, key)
	return nil
}
