package localfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/errs"
)

// splitPrefix separates a listing prefix into its directory key and the
// name prefix filtering entries inside it.
func splitPrefix(prefix string) (dir, name string) {
	i := strings.LastIndex(prefix, "/")
	if i < 0 {
		return "", prefix
	}
	return prefix[:i+1], prefix[i+1:]
}

// List enumerates keys by prefix. With the "/" delimiter only the
// directory holding the prefix is read; otherwise the tree is walked.
// An existing directory always reports its own marker key.
func (a *LocalFSAdapter) List(ctx context.Context, opts backends.ListOptions) (*backends.ListResult, error) {
	if opts.Delimiter != "" && opts.Delimiter != "/" {
		return nil, errs.Newf(errs.KindUnsupported, "localfs listing only supports the %q delimiter", "/")
	}

	dirKey, namePrefix := splitPrefix(opts.Prefix)
	dirPath, err := a.resolve(dirKey)
	if err != nil {
		return nil, err
	}

	result := &backends.ListResult{}
	if _, err := os.Stat(dirPath); err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, mapError("list", opts.Prefix, err)
	}

	if opts.Delimiter == "" {
		return a.walk(ctx, dirPath, opts)
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, mapError("list", opts.Prefix, err)
	}

	full := func() bool {
		return opts.MaxKeys > 0 && len(result.Objects)+len(result.CommonPrefixes) >= opts.MaxKeys
	}

	if namePrefix == "" && dirKey != "" {
		if info, err := os.Stat(dirPath); err == nil {
			result.Objects = append(result.Objects, objectInfo(dirKey, info))
		}
	}

	for _, entry := range entries {
		if full() {
			break
		}
		name := entry.Name()
		if hidden(name) || !strings.HasPrefix(name, namePrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			a.logger.Debug("Skipping unreadable entry", zap.String("name", name), zap.Error(err))
			continue
		}

		if info.IsDir() {
			result.CommonPrefixes = append(result.CommonPrefixes, dirKey+name+"/")
			continue
		}
		result.Objects = append(result.Objects, objectInfo(dirKey+name, info))
	}

	return result, nil
}

// walk lists every key under the prefix, directories as marker keys
func (a *LocalFSAdapter) walk(ctx context.Context, dirPath string, opts backends.ListOptions) (*backends.ListResult, error) {
	result := &backends.ListResult{}

	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if hidden(d.Name()) {
			return nil
		}

		key := a.keyFor(path, d.IsDir())
		if key == "" || !strings.HasPrefix(key, opts.Prefix) {
			// the walk root can sit above a name prefix
			if d.IsDir() && key != "" && !strings.HasPrefix(opts.Prefix, key) {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		result.Objects = append(result.Objects, objectInfo(key, info))

		if opts.MaxKeys > 0 && len(result.Objects) >= opts.MaxKeys {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, mapError("list", opts.Prefix, err)
	}

	sort.Slice(result.Objects, func(i, j int) bool { return result.Objects[i].Key < result.Objects[j].Key })
	return result, nil
}

// DeleteMatching removes every file and directory whose key begins with
// prefix and returns how many keys were removed.
func (a *LocalFSAdapter) DeleteMatching(ctx context.Context, prefix string) (int, error) {
	listing, err := a.List(ctx, backends.ListOptions{Prefix: prefix})
	if err != nil {
		return 0, err
	}

	// deepest first so directories are empty when they are removed
	keys := make([]string, 0, len(listing.Objects))
	for _, obj := range listing.Objects {
		keys = append(keys, obj.Key)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	deleted := 0
	for _, key := range keys {
		fullPath, err := a.resolve(key)
		if err != nil {
			return deleted, err
		}
		if fullPath == filepath.Clean(a.rootPath) {
			continue
		}
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			return deleted, mapError("delete", key, err)
		}
		deleted++
	}

	a.logger.Debug("Deleted matching keys", zap.String("prefix", prefix), zap.Int("count", deleted))
	return deleted, nil
}
