// Package core emulates folders on top of flat object stores. A Source
// binds one configured backend and exposes listing, container and object
// operations over virtual paths; the TransferEngine copies or moves whole
// subtrees between two sources.
package core

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/internal/pathutil"
	"github.com/ebogdum/mediasource/metrics"
)

// FieldError is one accumulated failure, keyed by the input field it
// relates to.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorList accumulates the failures of source operations so callers can
// check HasErrors after a call.
type ErrorList struct {
	mu     sync.Mutex
	errors []FieldError
}

// AddError appends one failure.
func (l *ErrorList) AddError(field, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any failure was recorded since the last Reset.
func (l *ErrorList) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors) > 0
}

// Errors returns a copy of the recorded failures.
func (l *ErrorList) Errors() []FieldError {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]FieldError(nil), l.errors...)
}

// Reset clears the list.
func (l *ErrorList) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = nil
}

// ErrorSink receives the failures of source operations.
type ErrorSink interface {
	AddError(field, message string)
}

type sinkKey struct{}

// WithErrorSink routes failures of operations run with ctx to sink instead
// of the source's own list. HTTP handlers use one sink per request.
func WithErrorSink(ctx context.Context, sink ErrorSink) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

// PermissionChecker decides whether the caller may perform an action such
// as file_remove or directory_create.
type PermissionChecker func(action string) bool

type permissionsKey struct{}

// WithPermissions attaches the caller's permission checker to ctx. Without
// one every action is allowed.
func WithPermissions(ctx context.Context, check PermissionChecker) context.Context {
	return context.WithValue(ctx, permissionsKey{}, check)
}

func hasPermission(ctx context.Context, action string) bool {
	if check, ok := ctx.Value(permissionsKey{}).(PermissionChecker); ok && check != nil {
		return check(action)
	}
	return true
}

// Source is one configured media source.
type Source struct {
	name   string
	cfg    config.SourceConfig
	store  backends.Storage
	audit  audit.Logger
	probes *ProbeCache
	logger *zap.Logger

	workers      int
	probeWorkers int
	maxDepth     int

	errors ErrorList
}

// Option customises a Source.
type Option func(*Source)

// WithWorkers bounds how many objects a folder copy handles at once.
func WithWorkers(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithProbeWorkers bounds how many binary probes a listing runs at once.
func WithProbeWorkers(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.probeWorkers = n
		}
	}
}

// WithMaxDepth bounds the recursion of folder copies.
func WithMaxDepth(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// NewSource creates a source over store. auditLog and probes may be nil.
func NewSource(name string, cfg config.SourceConfig, store backends.Storage, auditLog audit.Logger, probes *ProbeCache, logger *zap.Logger, opts ...Option) *Source {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	s := &Source{
		name:         name,
		cfg:          cfg.WithDefaults(),
		store:        store,
		audit:        auditLog,
		probes:       probes,
		logger:       logger.With(zap.String("source", name)),
		workers:      4,
		probeWorkers: 8,
		maxDepth:     100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the configured source name.
func (s *Source) Name() string { return s.name }

// Config returns the source configuration with defaults applied.
func (s *Source) Config() config.SourceConfig { return s.cfg }

// Storage returns the backend driver of the source.
func (s *Source) Storage() backends.Storage { return s.store }

// BaseDir returns the configured base directory without surrounding
// delimiters.
func (s *Source) BaseDir() string {
	return strings.Trim(s.cfg.BaseDir, pathutil.Delimiter)
}

// HasErrors reports whether the source's own list holds failures.
func (s *Source) HasErrors() bool { return s.errors.HasErrors() }

// Errors returns the failures recorded on the source's own list.
func (s *Source) Errors() []FieldError { return s.errors.Errors() }

// ResetErrors clears the source's own list.
func (s *Source) ResetErrors() { s.errors.Reset() }

// Close releases the backend driver.
func (s *Source) Close() error {
	return s.store.Close()
}

func (s *Source) sink(ctx context.Context) ErrorSink {
	if sink, ok := ctx.Value(sinkKey{}).(ErrorSink); ok && sink != nil {
		return sink
	}
	return &s.errors
}

// fail records err against field and returns it.
func (s *Source) fail(ctx context.Context, operation, field string, err error) error {
	s.sink(ctx).AddError(field, err.Error())
	metrics.SourceOperationsTotal.WithLabelValues(operation, "failure").Inc()
	metrics.ErrorsTotal.WithLabelValues("source", errs.KindOf(err).String()).Inc()
	s.logger.Warn("Source operation failed",
		zap.String("operation", operation),
		zap.Error(err))
	return err
}

// succeed writes the audit entry of a completed mutation.
func (s *Source) succeed(ctx context.Context, action, item string) {
	metrics.SourceOperationsTotal.WithLabelValues(action, "success").Inc()
	if err := s.audit.LogAction(ctx, audit.Entry{Source: s.name, Action: action, Item: item}); err != nil {
		s.logger.Error("Failed to write audit entry",
			zap.String("action", action),
			zap.String("item", item),
			zap.Error(err))
	}
}

// resolve applies root injection to a virtual path.
func (s *Source) resolve(path string) string {
	return pathutil.ToBackendKey(path, s.cfg.BaseDir)
}

// listPrefix is the resolved listing prefix of path. Store keys never
// start with the delimiter.
func (s *Source) listPrefix(path string) string {
	return strings.TrimLeft(s.resolve(path), pathutil.Delimiter)
}

// clean strips the public url from a path passed by a display layer.
func (s *Source) clean(path string) string {
	return pathutil.CleanKey(path, s.cfg.URL)
}

// FileURL returns the public url of a key.
func (s *Source) FileURL(key string) string {
	return pathutil.FileURL(key, s.cfg.URL)
}

// ObjectURL returns the public url of a key relative to the base directory.
func (s *Source) ObjectURL(key string) string {
	return pathutil.ObjectURL(key, s.cfg.URL, s.cfg.BaseDir)
}

// prefixExists reports whether any object key begins with prefix.
func (s *Source) prefixExists(ctx context.Context, prefix string) (bool, error) {
	res, err := s.store.List(ctx, backends.ListOptions{Prefix: prefix, MaxKeys: 1})
	if err != nil {
		return false, errs.Ensure(err, errs.KindBackendFailure, "failed to check prefix")
	}
	return len(res.Objects) > 0 || len(res.CommonPrefixes) > 0, nil
}

func (s *Source) invalidate(key string) {
	s.probes.Invalidate(s.name + ":" + key)
}

func (s *Source) invalidatePrefix(prefix string) {
	s.probes.InvalidatePrefix(s.name + ":" + prefix)
}

func (s *Source) putOptions(ext string) backends.PutOptions {
	return backends.PutOptions{ContentType: ContentType(ext), ACL: s.cfg.ACL}
}
