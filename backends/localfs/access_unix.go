//go:build !windows

package localfs

import (
	"context"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ebogdum/mediasource/backends"
)

// Access reports existence and the effective read/write rights of the
// calling process on the path behind key.
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

	return backends.Access{
		Exists:   true,
		IsDir:    info.IsDir(),
		Readable: unix.Access(fullPath, unix.R_OK) == nil,
		Writable: unix.Access(fullPath, unix.W_OK) == nil,
	}, nil
}
