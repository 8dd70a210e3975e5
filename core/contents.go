package core

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/backends"
	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/internal/pathutil"
)

// ObjectContent is a fetched object prepared for display. Content is empty
// for binary objects.
type ObjectContent struct {
	Name         string `json:"name"`
	Basename     string `json:"basename"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
	Content      string `json:"content"`
	Image        bool   `json:"image"`
	IsWritable   bool   `json:"is_writable"`
	IsReadable   bool   `json:"is_readable"`
}

// GetObjectContents fetches path. When the fetch fails and retry is set, it
// is attempted once more under the base directory.
func (s *Source) GetObjectContents(ctx context.Context, path string, retry bool) (*ObjectContent, error) {
	content, err := s.fetch(ctx, path)
	if err == nil {
		return content, nil
	}

	if base := s.BaseDir(); retry && base != "" {
		s.logger.Debug("Retrying fetch under base directory",
			zap.String("path", path),
			zap.Error(err))
		return s.GetObjectContents(ctx, base+pathutil.Delimiter+strings.TrimLeft(path, pathutil.Delimiter), false)
	}

	return nil, s.fail(ctx, "object_contents", "file", err)
}

func (s *Source) fetch(ctx context.Context, path string) (*ObjectContent, error) {
	obj, err := s.store.Get(ctx, path, backends.GetOptions{})
	if err != nil {
		return nil, errs.Ensure(err, errs.KindBackendFailure, "failed to get "+path)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to read "+path, err)
	}

	binary := IsBinaryContent(data)
	content := &ObjectContent{
		Name:       path,
		Basename:   pathutil.Base(path),
		Path:       path,
		Size:       obj.Info.Size,
		Image:      s.cfg.IsImage(pathutil.Extension(path)),
		IsWritable: !binary,
		IsReadable: true,
	}
	if obj.Info.Size == 0 {
		content.Size = int64(len(data))
	}
	if !obj.Info.LastModified.IsZero() {
		content.LastModified = obj.Info.LastModified.Format(s.cfg.DateFormat + " " + s.cfg.TimeFormat)
	}
	if !binary {
		content.Content = string(data)
	}
	return content, nil
}
