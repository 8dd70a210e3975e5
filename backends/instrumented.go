package backends

import (
	"context"
	"io"
	"time"

	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/metrics"
)

// instrumented records Prometheus metrics around every call of a Storage.
type instrumented struct {
	Storage
	backendType string
}

// instrumentedInspector keeps the Inspector capability visible through the
// wrapper.
type instrumentedInspector struct {
	*instrumented
	inspector Inspector
}

// Instrument wraps store so every operation is counted and timed under
// the given backend type label.
func Instrument(store Storage, backendType string) Storage {
	base := &instrumented{Storage: store, backendType: backendType}
	if in, ok := store.(Inspector); ok {
		return &instrumentedInspector{instrumented: base, inspector: in}
	}
	return base
}

func (s *instrumented) observe(operation string, start time.Time, err error) {
	metrics.BackendOpsTotal.WithLabelValues(s.backendType, operation).Inc()
	metrics.BackendOpDuration.WithLabelValues(s.backendType, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendErrorsTotal.WithLabelValues(s.backendType, operation, errs.KindOf(err).String()).Inc()
	}
}

func (s *instrumented) List(ctx context.Context, opts ListOptions) (res *ListResult, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(time.Now())
	return s.Storage.List(ctx, opts)
}

func (s *instrumented) Get(ctx context.Context, key string, opts GetOptions) (obj *Object, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())
	return s.Storage.Get(ctx, key, opts)
}

func (s *instrumented) Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) (err error) {
	defer func(start time.Time) { s.observe("put", start, err) }(time.Now())
	return s.Storage.Put(ctx, key, r, size, opts)
}

func (s *instrumented) Copy(ctx context.Context, srcKey, dstKey string, opts PutOptions) (err error) {
	defer func(start time.Time) { s.observe("copy", start, err) }(time.Now())
	return s.Storage.Copy(ctx, srcKey, dstKey, opts)
}

func (s *instrumented) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.Storage.Delete(ctx, key)
}

func (s *instrumented) DeleteMatching(ctx context.Context, prefix string) (n int, err error) {
	defer func(start time.Time) { s.observe("delete_matching", start, err) }(time.Now())
	return s.Storage.DeleteMatching(ctx, prefix)
}

func (s *instrumented) Exists(ctx context.Context, key string) (ok bool, err error) {
	defer func(start time.Time) { s.observe("exists", start, err) }(time.Now())
	return s.Storage.Exists(ctx, key)
}

func (s *instrumentedInspector) Access(ctx context.Context, key string) (a Access, err error) {
	defer func(start time.Time) { s.observe("access", start, err) }(time.Now())
	return s.inspector.Access(ctx, key)
}
