package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ebogdum/mediasource/auth"
	"github.com/ebogdum/mediasource/core"
)

// SourcesResponse lists the configured sources
type SourcesResponse struct {
	Count   int               `json:"count"`
	Sources []core.SourceInfo `json:"sources"`
}

// ListSources handles GET /v1/sources
func (a *API) ListSources(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.begin(w, r, auth.ActionList); !ok {
		return
	}

	names := a.registry.Names()
	infos := make([]core.SourceInfo, 0, len(names))
	for _, name := range names {
		info, err := a.registry.Info(name)
		if err != nil {
			SendErrorResponse(w, a.logger, err, nil)
			return
		}
		infos = append(infos, info)
	}

	SendJSONResponse(w, a.logger, http.StatusOK, SourcesResponse{Count: len(infos), Sources: infos})
}

// GetSource handles GET /v1/sources/{source}
func (a *API) GetSource(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.begin(w, r, auth.ActionView); !ok {
		return
	}

	info, err := a.registry.Info(chi.URLParam(r, "source"))
	if err != nil {
		SendErrorResponse(w, a.logger, err, nil)
		return
	}
	SendJSONResponse(w, a.logger, http.StatusOK, info)
}
