package core

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/internal/pathutil"
	"github.com/ebogdum/mediasource/locks"
	"github.com/ebogdum/mediasource/metrics"
)

// Method selects whether a transfer keeps the source objects.
type Method string

const (
	MethodCopy Method = "copy"
	MethodMove Method = "move"
)

// Transfer event operations.
const (
	OpCopy   = "copy"
	OpIndex  = "index"
	OpDelete = "delete"
	OpSkip   = "skip"
	OpList   = "list"
)

// TransferRequest describes one tree transfer. Container is the
// destination key: the full object key for a file, the folder prefix for
// a directory.
type TransferRequest struct {
	Source      *Source
	SourcePath  string
	Destination *Source
	Container   string
	Kind        EntryKind
	Method      Method
}

// TransferError is the failure of one object inside a transfer.
type TransferError struct {
	Key string
	Op  string
	Err error
}

func (e *TransferError) Error() string {
	return e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// MarshalJSON includes the error kind and message.
func (e *TransferError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key     string `json:"key"`
		Op      string `json:"op"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}{e.Key, e.Op, errs.KindOf(e.Err).String(), e.Err.Error()})
}

// TransferReport summarises a finished or interrupted transfer.
type TransferReport struct {
	ID          uuid.UUID           `json:"id"`
	Method      Method              `json:"method"`
	Kind        EntryKind           `json:"kind"`
	Source      string              `json:"source"`
	Destination string              `json:"destination"`
	SourcePath  string              `json:"source_path"`
	Container   string              `json:"container"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	Transferred []string            `json:"transferred"`
	Deleted     []string            `json:"deleted"`
	Skipped     []string            `json:"skipped"`
	Errors      []*TransferError    `json:"errors"`
	Redirect    *audit.RedirectRule `json:"redirect,omitempty"`
}

// Err aggregates the per-object failures, or returns nil.
func (r *TransferReport) Err() error {
	var result *multierror.Error
	for _, e := range r.Errors {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}

// TransferEvent reports one attempted object operation.
type TransferEvent struct {
	ReportID uuid.UUID `json:"report_id"`
	Op       string    `json:"op"`
	Key      string    `json:"key"`
	Target   string    `json:"target,omitempty"`
	Err      error     `json:"-"`
}

// Observer receives transfer events. Calls are serialised.
type Observer func(TransferEvent)

// TransferEngine copies or moves subtrees between sources.
type TransferEngine struct {
	workers   int
	maxDepth  int
	locks     locks.Manager
	redirects audit.RedirectRecorder
	logger    *zap.Logger
}

// NewTransferEngine creates an engine. lockManager and redirects may be nil.
func NewTransferEngine(cfg config.TransferConfig, lockManager locks.Manager, redirects audit.RedirectRecorder, logger *zap.Logger) *TransferEngine {
	e := &TransferEngine{
		workers:   cfg.Workers,
		maxDepth:  cfg.MaxDepth,
		locks:     lockManager,
		redirects: redirects,
		logger:    logger,
	}
	if e.workers <= 0 {
		e.workers = 4
	}
	if e.maxDepth <= 0 {
		e.maxDepth = 100
	}
	return e
}

// Transfer runs req. Per-object failures are collected in the report and
// never stop the remaining objects; the returned error is reserved for
// requests that could not start and for cancellation, in which case the
// partial report is returned with the context error.
func (e *TransferEngine) Transfer(ctx context.Context, req TransferRequest, observer Observer) (*TransferReport, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	container := pathutil.NormalizeContainer(req.Container)

	if e.locks != nil {
		lockKey := "transfer:" + req.Destination.Name() + ":" + container
		acquired, err := e.locks.Acquire(ctx, lockKey)
		if err != nil {
			return nil, errs.Ensure(err, errs.KindBackendFailure, "failed to lock transfer destination")
		}
		if !acquired {
			return nil, errs.Newf(errs.KindBusy, "another transfer is writing %q on %q", container, req.Destination.Name())
		}
		defer func() {
			if err := e.locks.Release(context.Background(), lockKey); err != nil {
				e.logger.Warn("Failed to release transfer lock", zap.String("key", lockKey), zap.Error(err))
			}
		}()
	}

	metrics.ActiveTransfers.Inc()
	defer metrics.ActiveTransfers.Dec()

	run := &transferRun{
		engine:   e,
		req:      req,
		observer: observer,
		report: &TransferReport{
			ID:          uuid.New(),
			Method:      req.Method,
			Kind:        req.Kind,
			Source:      req.Source.Name(),
			Destination: req.Destination.Name(),
			SourcePath:  req.SourcePath,
			Container:   container,
			StartedAt:   time.Now().UTC(),
			Transferred: []string{},
			Deleted:     []string{},
			Skipped:     []string{},
			Errors:      []*TransferError{},
		},
	}
	run.group.SetLimit(e.workers)

	logger := e.logger.With(
		zap.String("transfer_id", run.report.ID.String()),
		zap.String("method", string(req.Method)),
		zap.String("from", req.Source.Name()),
		zap.String("to", req.Destination.Name()))
	logger.Info("Transfer started",
		zap.String("path", req.SourcePath),
		zap.String("container", container),
		zap.String("kind", string(req.Kind)))

	if req.Kind == KindFile {
		run.startFile(ctx, req.SourcePath, container)
	} else {
		run.walk(ctx, req.SourcePath, container, 0)
	}
	_ = run.group.Wait()

	report := run.report
	report.FinishedAt = time.Now().UTC()
	metrics.TransferDuration.WithLabelValues(string(req.Method), string(req.Kind)).
		Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	sink := req.Destination.sink(ctx)
	for _, te := range report.Errors {
		sink.AddError("file", te.Error())
	}

	if req.Method == MethodMove && len(report.Transferred) > 0 {
		rule := redirectRule(req, container)
		if e.redirects != nil {
			if err := e.redirects.RecordRedirect(context.WithoutCancel(ctx), rule); err != nil {
				logger.Error("Failed to record redirect rule", zap.Error(err))
			}
		}
		report.Redirect = &rule
	}

	logger.Info("Transfer finished",
		zap.Int("transferred", len(report.Transferred)),
		zap.Int("deleted", len(report.Deleted)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func validateRequest(req TransferRequest) error {
	switch {
	case req.Source == nil || req.Destination == nil:
		return errs.New(errs.KindInvalidInput, "transfer needs a source and a destination")
	case req.Method != MethodCopy && req.Method != MethodMove:
		return errs.Newf(errs.KindInvalidInput, "unknown transfer method %q", req.Method)
	case req.Kind != KindFile && req.Kind != KindDir:
		return errs.Newf(errs.KindInvalidInput, "unknown object type %q", req.Kind)
	case req.Kind == KindFile && strings.Trim(req.Container, pathutil.Delimiter) == "":
		return errs.New(errs.KindInvalidInput, "file transfers need a destination key")
	}
	return nil
}

// redirectRule maps the public url of the moved path onto its new url.
func redirectRule(req TransferRequest, container string) audit.RedirectRule {
	oldURL := strings.Trim(req.Source.FileURL(req.SourcePath), pathutil.Delimiter)
	newURL := strings.Trim(req.Destination.FileURL(container), pathutil.Delimiter)

	if req.Kind == KindDir {
		return audit.RedirectRule{
			Kind:    string(KindDir),
			Pattern: "^" + strings.ReplaceAll(oldURL, "/", `\/`) + "(.*)$",
			Target:  newURL + "$1",
		}
	}
	return audit.RedirectRule{Kind: string(KindFile), Pattern: oldURL, Target: newURL}
}

// transferRun is the state of one Transfer call. The walk runs on the
// calling goroutine and hands file jobs to the bounded group.
type transferRun struct {
	engine   *TransferEngine
	req      TransferRequest
	observer Observer
	group    errgroup.Group

	mu     sync.Mutex
	report *TransferReport
}

func (r *transferRun) record(op, key, target string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := "transferred"
	switch {
	case err != nil:
		result = "failed"
		r.report.Errors = append(r.report.Errors, &TransferError{Key: key, Op: op, Err: err})
		r.engine.logger.Warn("Transfer object failed",
			zap.String("transfer_id", r.report.ID.String()),
			zap.String("op", op),
			zap.String("key", key),
			zap.Error(err))
	case op == OpSkip:
		result = "skipped"
		r.report.Skipped = append(r.report.Skipped, key)
	case op == OpDelete:
		result = "deleted"
		r.report.Deleted = append(r.report.Deleted, key)
	case op == OpCopy || op == OpIndex:
		r.report.Transferred = append(r.report.Transferred, target)
	}
	if op != OpList {
		metrics.TransferObjectsTotal.WithLabelValues(string(r.req.Method), result).Inc()
	}

	if r.observer != nil {
		r.observer(TransferEvent{ReportID: r.report.ID, Op: op, Key: key, Target: target, Err: err})
	}
}

// walk schedules every file below fromPath. Folders recurse into
// container/<name>, files land at container/<name>.
func (r *transferRun) walk(ctx context.Context, fromPath, container string, depth int) {
	if depth > r.engine.maxDepth {
		r.record(OpList, fromPath, container, errs.Newf(errs.KindInvalidInput, "folder %q exceeds the maximum depth of %d", fromPath, r.engine.maxDepth))
		return
	}

	dirs, files, err := r.req.Source.children(ctx, fromPath)
	if err != nil {
		r.record(OpList, fromPath, container, err)
		return
	}

	newDir := strings.TrimRight(container, pathutil.Delimiter) + pathutil.Delimiter
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return
		}
		r.walk(ctx, dir, strings.TrimLeft(newDir+pathutil.Base(dir), pathutil.Delimiter), depth+1)
	}
	for _, key := range files {
		if ctx.Err() != nil {
			return
		}
		dst := strings.Trim(newDir+pathutil.Base(key), pathutil.Delimiter)
		r.group.Go(func() error {
			r.transferFile(ctx, key, dst)
			return nil
		})
	}
}

// startFile resolves a single source file, falling back to the base
// directory like GetObjectContents, and schedules it.
func (r *transferRun) startFile(ctx context.Context, fromPath, dst string) {
	src := r.req.Source
	key := fromPath

	exists, err := src.store.Exists(ctx, key)
	if err == nil && !exists && src.BaseDir() != "" {
		key = src.BaseDir() + pathutil.Delimiter + strings.TrimLeft(fromPath, pathutil.Delimiter)
		exists, err = src.store.Exists(ctx, key)
	}
	switch {
	case err != nil:
		r.record(OpCopy, fromPath, dst, errs.Ensure(err, errs.KindBackendFailure, "failed to check "+fromPath))
		return
	case !exists:
		r.record(OpCopy, fromPath, dst, errs.Newf(errs.KindNotFound, "file %q not found", fromPath))
		return
	}

	r.group.Go(func() error {
		r.transferFile(ctx, key, strings.Trim(dst, pathutil.Delimiter))
		return nil
	})
}

// transferFile writes one source object to dst, duplicates index documents
// onto their folder key and, for moves, removes the source once the
// primary write succeeded.
func (r *transferRun) transferFile(ctx context.Context, srcKey, dst string) {
	if err := r.put(ctx, srcKey, dst); err != nil {
		r.record(OpCopy, srcKey, dst, err)
		return
	}
	r.record(OpCopy, srcKey, dst, nil)

	if parent, ok := pathutil.IndexParent(dst); ok && parent != "" {
		r.record(OpIndex, srcKey, parent, r.put(ctx, srcKey, parent))
	}

	if r.req.Method == MethodMove {
		r.removeSource(ctx, srcKey)
	}
}

func (r *transferRun) put(ctx context.Context, srcKey, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	obj, err := r.req.Source.store.Get(ctx, srcKey, backends.GetOptions{})
	if err != nil {
		return errs.Ensure(err, errs.KindBackendFailure, "failed to read "+srcKey)
	}
	defer obj.Close()

	dest := r.req.Destination
	opts := backends.PutOptions{
		ContentType: ContentType(pathutil.Extension(srcKey)),
		ACL:         dest.cfg.ACL,
	}
	if err := dest.store.Put(ctx, dst, obj, obj.Info.Size, opts); err != nil {
		return errs.Ensure(err, errs.KindBackendFailure, "failed to write "+dst)
	}
	dest.invalidate(dst)
	return nil
}

// removeSource deletes a moved source object after checking it is still an
// accessible file. An already removed source is skipped.
func (r *transferRun) removeSource(ctx context.Context, key string) {
	src := r.req.Source

	access, err := backends.Inspect(ctx, src.store, key)
	switch {
	case err != nil:
		r.record(OpDelete, key, "", errs.Wrap(errs.KindLocalIOFailure, "failed to inspect "+key, err))
		return
	case !access.Exists:
		r.record(OpSkip, key, "", nil)
		return
	case !access.Readable || !access.Writable:
		r.record(OpDelete, key, "", errs.Newf(errs.KindLocalIOFailure, "insufficient permissions to remove %q", key))
		return
	case access.IsDir:
		r.record(OpDelete, key, "", errs.Newf(errs.KindLocalIOFailure, "%q is not a file", key))
		return
	}

	if err := src.store.Delete(ctx, key); err != nil {
		r.record(OpDelete, key, "", errs.Wrap(errs.KindLocalIOFailure, "failed to remove "+key, err))
		return
	}
	src.invalidate(key)
	r.record(OpDelete, key, "", nil)
}
