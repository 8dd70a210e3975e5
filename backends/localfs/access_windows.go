//go:build windows

package localfs

import (
	"context"
	"os"

	"github.com/ebogdum/mediasource/backends"
)

// Access reports existence and approximates read/write rights from the
// permission bits, which is all Windows exposes through os.FileInfo.
func (a *LocalFSAdapter) Access(ctx context.Context, key string) (backends.Access, error) {
	fullPath, err := a.resolve(key)
	if err != nil {
		return backends.Access{}, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return backends.Access{}, nil
		}
		return backends.Access{}, mapError("access", key, err)
	}

	mode := info.Mode().Perm()
	return backends.Access{
		Exists:   true,
		IsDir:    info.IsDir(),
		Readable: mode&0400 != 0,
		Writable: mode&0200 != 0,
	}, nil
}
