package handlers

import (
	"net/http"

	"github.com/ebogdum/mediasource/auth"
	"github.com/ebogdum/mediasource/core"
)

// ContainerListResponse represents the response for folder listings
type ContainerListResponse struct {
	Path    string              `json:"path"`
	Count   int                 `json:"count"`
	Entries []core.ListingEntry `json:"entries"`
}

type createContainerRequest struct {
	Name   string `json:"name"`
	Parent string `json:"parent"`
}

type renameContainerRequest struct {
	Path         string `json:"path"`
	NewName      string `json:"new_name"`
	FullPath     bool   `json:"full_path"`
	KeepOriginal bool   `json:"keep_original"`
}

// ListContainer handles GET /v1/sources/{source}/containers?path=
func (a *API) ListContainer(w http.ResponseWriter, r *http.Request) {
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

	entries, err := src.GetContainerList(c.ctx, path)
	if err != nil {
		a.fail(w, c, err)
		return
	}
	SendJSONResponse(w, a.logger, http.StatusOK, ContainerListResponse{Path: path, Count: len(entries), Entries: entries})
}

// CreateContainer handles POST /v1/sources/{source}/containers
func (a *API) CreateContainer(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "directory_create")
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	var req createContainerRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, c, err)
		return
	}
	if err := validateAll(req.Name, req.Parent); err != nil {
		a.fail(w, c, err)
		return
	}

	if err := src.CreateContainer(c.ctx, req.Name, req.Parent); err != nil {
		a.fail(w, c, err)
		return
	}
	a.done(w, c, http.StatusCreated)
}

// RenameContainer handles PATCH /v1/sources/{source}/containers
func (a *API) RenameContainer(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "directory_update")
	if !ok {
		return
	}
	src, ok := a.source(w, r)
	if !ok {
		return
	}

	var req renameContainerRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, c, err)
		return
	}
	if err := validateAll(req.Path, req.NewName); err != nil {
		a.fail(w, c, err)
		return
	}

	opts := core.RenameOptions{FullPath: req.FullPath, KeepOriginal: req.KeepOriginal}
	if err := src.RenameContainer(c.ctx, req.Path, req.NewName, opts); err != nil {
		a.fail(w, c, err)
		return
	}
	a.done(w, c, http.StatusOK)
}

// RemoveContainer handles DELETE /v1/sources/{source}/containers?path=
func (a *API) RemoveContainer(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, "directory_remove")
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

	if err := src.RemoveContainer(c.ctx, path); err != nil {
		a.fail(w, c, err)
		return
	}
	a.done(w, c, http.StatusOK)
}

func validateAll(paths ...string) error {
	for _, p := range paths {
		if _, err := validatePath(p); err != nil {
			return err
		}
	}
	return nil
}
