package handlers

import (
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/internal/errs"
)

const uploadMemoryLimit = 32 << 20

// UploadObjects handles POST /v1/sources/{source}/uploads?container=
// with the files in the multipart field "files".
func (a *API) UploadObjects(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "file_upload")
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	container, err := queryPath(r, "container")
	if err != nil {
		a.fail(w, c, err)
		return
	}

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		a.fail(w, c, errs.Wrap(errs.KindInvalidInput, "invalid multipart body", err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			a.logger.Warn("Failed to remove multipart temp files", zap.Error(err))
		}
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		a.fail(w, c, errs.New(errs.KindInvalidInput, "no files uploaded"))
		return
	}

	uploads := make([]core.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(uploads)
			a.fail(w, c, errs.Wrap(errs.KindLocalIOFailure, "failed to open upload "+fh.Filename, err))
			return
		}
		uploads = append(uploads, core.Upload{Name: fh.Filename, Size: fh.Size, Body: f})
	}
	defer closeAll(uploads)

	if err := src.UploadObjects(c.ctx, container, uploads); err != nil {
		a.fail(w, c, err)
		return
	}
	a.done(w, c, http.StatusCreated)
}

func closeAll(uploads []core.Upload) {
	for _, up := range uploads {
		if f, ok := up.Body.(multipart.File); ok {
			_ = f.Close()
		}
	}
}
