package handlers

import (
	"net/http"

	"github.com/ebogdum/mediasource/auth"
	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/internal/errs"
)

// ThumbsResponse represents the response for thumbnail listings
type ThumbsResponse struct {
	Path   string            `json:"path"`
	Count  int               `json:"count"`
	Thumbs []core.ThumbEntry `json:"thumbs"`
}

type objectRequest struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type renameObjectRequest struct {
	Path    string `json:"path"`
	NewName string `json:"new_name"`
}

type moveObjectRequest struct {
	From  string         `json:"from"`
	To    string         `json:"to"`
	Point core.MovePoint `json:"point"`
}

// ListObjects handles GET /v1/sources/{source}/objects?path=
func (a *API) ListObjects(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, auth.ActionList)
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	path, err := queryPath(r, "path")
	if err != nil {
		a.fail(w, c, err)
		return
	}

	thumbs, err := src.GetObjectsInContainer(c.ctx, path)
	if err != nil {
		a.fail(w, c, err)
		return
	}
	SendJSONResponse(w, a.logger, http.StatusOK, ThumbsResponse{Path: path, Count: len(thumbs), Thumbs: thumbs})
}

// GetObjectContents handles GET /v1/sources/{source}/contents?path=
func (a *API) GetObjectContents(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "file_view")
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	path, err := queryPath(r, "path")
	if err != nil {
		a.fail(w, c, err)
		return
	}
	if path == "" {
		a.fail(w, c, errs.New(errs.KindInvalidInput, "path is required"))
		return
	}

	content, err := src.GetObjectContents(c.ctx, path, true)
	if err != nil {
		a.fail(w, c, err)
		return
	}
	SendJSONResponse(w, a.logger, http.StatusOK, content)
}

// CreateObject handles POST /v1/sources/{source}/objects
func (a *API) CreateObject(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "file_create")
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	var req objectRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, c, err)
		return
	}
	if err := validateAll(req.Path, req.Name); err != nil {
		a.fail(w, c, err)
		return
	}

	if err := src.CreateObject(c.ctx, req.Path, req.Name, req.Content); err != nil {
		a.fail(w, c, err)
		return
	}
	a.done(w, c, http.StatusCreated)
}

// UpdateObject handles PUT /v1/sources/{source}/objects
func (a *API) UpdateObject(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "file_update")
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	var req objectRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, c, err)
		return
	}
	if err := validateAll(req.Path); err != nil {
		a.fail(w, c, err)
		return
	}

	if err := src.UpdateObject(c.ctx, req.Path, req.Content); err != nil {
		a.fail(w, c, err)
		return
	}
	a.done(w, c, http.StatusOK)
}

// RenameObject handles PATCH /v1/sources/{source}/objects
func (a *API) RenameObject(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "file_rename")
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	var req renameObjectRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, c, err)
		return
	}
	if err := validateAll(req.Path, req.NewName); err != nil {
		a.fail(w, c, err)
		return
	}

	if err := src.RenameObject(c.ctx, req.Path, req.NewName); err != nil {
		a.fail(w, c, err)
		return
	}
	a.done(w, c, http.StatusOK)
}

// MoveObject handles POST /v1/sources/{source}/objects/move
func (a *API) MoveObject(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "file_move")
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	var req moveObjectRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, c, err)
		return
	}
	if err := validateAll(req.From, req.To); err != nil {
		a.fail(w, c, err)
		return
	}
	if req.Point == "" {
		req.Point = core.MoveAppend
	}

	if err := src.MoveObject(c.ctx, req.From, req.To, req.Point); err != nil {
		a.fail(w, c, err)
		return
	}
	a.done(w, c, http.StatusOK)
}

// RemoveObject handles DELETE /v1/sources/{source}/objects?path=
func (a *API) RemoveObject(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "file_remove")
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	path, err := queryPath(r, "path")
	if err != nil {
		a.fail(w, c, err)
		return
	}

	if err := src.RemoveObject(c.ctx, path); err != nil {
		a.fail(w, c, err)
		return
	}
	a.done(w, c, http.StatusOK)
}
