// Package memory provides an in-process implementation of backends.Storage.
// It follows the listing semantics of S3 (prefix + delimiter roll-up) and
// supports fault injection, which makes it the reference store for tests
// and dry-run sources.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/errs"
)

type entry struct {
	data []byte
	info backends.ObjectInfo
	acl  string
}

// Store is a concurrency-safe in-memory object store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*entry
	faults  map[string]map[string]error
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		objects: make(map[string]*entry),
		faults:  make(map[string]map[string]error),
		now:     time.Now,
	}
}

// Fail makes every future call of op on key return err. An empty key
// matches all keys. Operation names: list, get, put, copy, delete,
// delete_matching, exists.
func (s *Store) Fail(op, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.faults[op] == nil {
		s.faults[op] = make(map[string]error)
	}
	s.faults[op][key] = err
}

// Heal removes all injected faults.
func (s *Store) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]map[string]error)
}

// fault must be called with the lock held.
func (s *Store) fault(op, key string) error {
	byKey := s.faults[op]
	if byKey == nil {
		return nil
	}
	if err, ok := byKey[key]; ok {
		return err
	}
	return byKey[""]
}

// Keys returns every stored key in lexical order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedKeys()
}

// ACL returns the canned ACL the object was written with.
func (s *Store) ACL(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.objects[key]; ok {
		return e.acl
	}
	return ""
}

// Content returns a copy of the stored bytes.
func (s *Store) Content(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(e.data), true
}

func (s *Store) sortedKeys() []string {
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// List implements backends.Storage.
func (s *Store) List(ctx context.Context, opts backends.ListOptions) (*backends.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "list canceled", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fault("list", opts.Prefix); err != nil {
		return nil, err
	}

	result := &backends.ListResult{}
	seen := make(map[string]struct{})
	count := 0

	for _, key := range s.sortedKeys() {
		if !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		if opts.MaxKeys > 0 && count >= opts.MaxKeys {
			break
		}

		rest := key[len(opts.Prefix):]
		if opts.Delimiter != "" {
			if i := strings.Index(rest, opts.Delimiter); i >= 0 {
				cp := opts.Prefix + rest[:i+len(opts.Delimiter)]
				if _, dup := seen[cp]; !dup {
					seen[cp] = struct{}{}
					result.CommonPrefixes = append(result.CommonPrefixes, cp)
					count++
				}
				continue
			}
		}

		result.Objects = append(result.Objects, s.objects[key].info)
		count++
	}

	return result, nil
}

// Get implements backends.Storage.
func (s *Store) Get(ctx context.Context, key string, opts backends.GetOptions) (*backends.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fault("get", key); err != nil {
		return nil, err
	}

	e, ok := s.objects[key]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "object %q not found", key)
	}

	data := e.data
	if opts.Offset > 0 {
		if opts.Offset >= int64(len(data)) {
			data = nil
		} else {
			data = data[opts.Offset:]
		}
	}
	if opts.Length > 0 && opts.Length < int64(len(data)) {
		data = data[:opts.Length]
	}

	return &backends.Object{
		ReadCloser: io.NopCloser(bytes.NewReader(bytes.Clone(data))),
		Info:       e.info,
	}, nil
}

// Put implements backends.Storage.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, opts backends.PutOptions) error {
	if key == "" {
		return errs.New(errs.KindInvalidInput, "object key cannot be empty")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return errs.Wrap(errs.KindBackendFailure, "failed to read object body", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("put", key); err != nil {
		return err
	}

	s.store(key, data, opts)
	return nil
}

// store must be called with the write lock held.
func (s *Store) store(key string, data []byte, opts backends.PutOptions) {
	sum := md5.Sum(data)
	s.objects[key] = &entry{
		data: data,
		acl:  opts.ACL,
		info: backends.ObjectInfo{
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  opts.ContentType,
			ETag:         hex.EncodeToString(sum[:]),
			LastModified: s.now().UTC(),
		},
	}
}

// Copy implements backends.Storage.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string, opts backends.PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("copy", srcKey); err != nil {
		return err
	}

	src, ok := s.objects[srcKey]
	if !ok {
		return errs.Newf(errs.KindNotFound, "copy source %q not found", srcKey)
	}

	if opts.ContentType == "" {
		opts.ContentType = src.info.ContentType
	}
	s.store(dstKey, bytes.Clone(src.data), opts)
	return nil
}

// Delete implements backends.Storage.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("delete", key); err != nil {
		return err
	}

	delete(s.objects, key)
	return nil
}

// DeleteMatching implements backends.Storage.
func (s *Store) DeleteMatching(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault("delete_matching", prefix); err != nil {
		return 0, err
	}

	n := 0
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			delete(s.objects, key)
			n++
		}
	}
	return n, nil
}

// Exists implements backends.Storage.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.fault("exists", key); err != nil {
		return false, err
	}

	_, ok := s.objects[key]
	return ok, nil
}

// Close implements backends.Storage.
func (s *Store) Close() error {
	return nil
}
