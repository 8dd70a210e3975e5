// Package backends defines the object store capability interface used by
// the directory emulation layer, plus helpers shared by its drivers.
package backends

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a single stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// ListOptions controls a List call.
type ListOptions struct {
	// Prefix restricts results to keys beginning with it.
	Prefix string
	// Delimiter rolls keys that contain it after the prefix up into
	// CommonPrefixes. An empty delimiter lists recursively.
	Delimiter string
	// MaxKeys stops the listing after that many objects. Zero means no limit.
	MaxKeys int
}

// ListResult is one listing level: the objects directly under the prefix
// and the rolled-up folder prefixes.
type ListResult struct {
	Objects        []ObjectInfo
	CommonPrefixes []string
}

// GetOptions selects a byte range. A zero Length reads to the end.
type GetOptions struct {
	Offset int64
	Length int64
}

// PutOptions carries the attributes written with an object.
type PutOptions struct {
	ContentType string
	ACL         string
}

// Object is an open object body. Callers must Close it.
type Object struct {
	io.ReadCloser
	Info ObjectInfo
}

// Storage is the primitive set every backend object store provides.
// Implementations must be safe for concurrent use.
type Storage interface {
	// List enumerates keys by prefix and delimiter.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Get opens an object for reading.
	Get(ctx context.Context, key string, opts GetOptions) (*Object, error)

	// Put writes an object, replacing any existing one.
	Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error

	// Copy duplicates srcKey to dstKey inside the same store.
	Copy(ctx context.Context, srcKey, dstKey string, opts PutOptions) error

	// Delete removes one key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteMatching removes every key beginning with prefix and returns
	// how many were removed.
	DeleteMatching(ctx context.Context, prefix string) (int, error)

	// Exists reports whether an object with exactly this key is stored.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases driver resources.
	Close() error
}

// Access is the result of a pre-deletion access check.
type Access struct {
	Exists   bool
	Readable bool
	Writable bool
	IsDir    bool
}

// Inspector is implemented by stores that can report access rights, such
// as local filesystems. Stores without it are treated as readable and
// writable whenever the key exists.
type Inspector interface {
	Access(ctx context.Context, key string) (Access, error)
}

// Inspect returns access information for key, using the store's Inspector
// when available.
func Inspect(ctx context.Context, store Storage, key string) (Access, error) {
	if in, ok := store.(Inspector); ok {
		return in.Access(ctx, key)
	}

	exists, err := store.Exists(ctx, key)
	if err != nil {
		return Access{}, err
	}
	return Access{Exists: exists, Readable: exists, Writable: exists}, nil
}
