package core

import (
	"context"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/internal/pathutil"
)

// Upload is one file submitted to UploadObjects.
type Upload struct {
	Name string
	Size int64
	Body io.Reader
}

// UploadObjects writes uploads into container under the base directory.
// Rejected or failed uploads are recorded and the rest still proceed; the
// returned error aggregates every failure.
func (s *Source) UploadObjects(ctx context.Context, container string, uploads []Upload) error {
	const op = "file_upload"

	prefix := pathutil.JoinKey(s.BaseDir(), pathutil.NormalizeContainer(container))

	var result *multierror.Error
	reject := func(err error) {
		result = multierror.Append(result, s.fail(ctx, op, "path", err))
	}

	uploaded := 0
	for _, up := range uploads {
		name := pathutil.Base(up.Name)
		if name == "" {
			continue
		}
		ext := pathutil.Extension(name)

		if !s.cfg.AllowsUpload(ext) {
			reject(errs.Newf(errs.KindInvalidInput, "file %q: extension %q is not allowed", name, ext))
			continue
		}
		if up.Size > s.cfg.UploadMaxSize {
			reject(errs.Newf(errs.KindInvalidInput, "file %q is too large: %s, allowed %s",
				name, humanize.IBytes(uint64(up.Size)), humanize.IBytes(uint64(s.cfg.UploadMaxSize))))
			continue
		}

		key := pathutil.JoinKey(prefix, name)
		if err := s.store.Put(ctx, key, up.Body, up.Size, s.putOptions(ext)); err != nil {
			reject(errs.Ensure(err, errs.KindBackendFailure, "failed to upload "+key))
			continue
		}
		s.invalidate(key)
		uploaded++

		s.logger.Info("File uploaded",
			zap.String("key", key),
			zap.Int64("size", up.Size))
	}

	if result.ErrorOrNil() != nil {
		return result
	}
	if uploaded > 0 {
		s.succeed(ctx, op, prefix)
	}
	return nil
}
