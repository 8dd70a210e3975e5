package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/auth"
	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/server/middleware"
)

// API serves the media source operations over HTTP.
type API struct {
	registry   *core.Registry
	engine     *core.TransferEngine
	authorizer auth.Authorizer
	logger     *zap.Logger
}

// NewAPI creates the handler set.
func NewAPI(registry *core.Registry, engine *core.TransferEngine, authorizer auth.Authorizer, logger *zap.Logger) *API {
	return &API{
		registry:   registry,
		engine:     engine,
		authorizer: authorizer,
		logger:     logger,
	}
}

// call is the request-scoped state of one authorised API call.
type call struct {
	ctx       context.Context
	principal *auth.Principal
	errors    *core.ErrorList
}

// begin authorises action for the authenticated caller and prepares the
// context source operations run with.
func (a *API) begin(w http.ResponseWriter, r *http.Request, action string) (*call, bool) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		SendErrorResponse(w, a.logger, auth.ErrAuthenticationFailed, nil)
		return nil, false
	}

	if err := a.authorizer.Authorize(r.Context(), p, action); err != nil {
		a.logger.Debug("Action denied",
			zap.String("user_id", p.ID),
			zap.String("action", action))
		SendErrorResponse(w, a.logger, err, nil)
		return nil, false
	}

	c := &call{principal: p, errors: &core.ErrorList{}}
	ctx := core.WithErrorSink(r.Context(), c.errors)
	ctx = core.WithPermissions(ctx, auth.Permissions(r.Context(), a.authorizer, p))
	c.ctx = audit.WithActor(ctx, p.ID)
	return c, true
}

// source resolves the {source} route parameter.
func (a *API) source(w http.ResponseWriter, r *http.Request) (*core.Source, bool) {
	src, err := a.registry.Get(chi.URLParam(r, "source"))
	if err != nil {
		SendErrorResponse(w, a.logger, err, nil)
		return nil, false
	}
	return src, true
}

func (a *API) fail(w http.ResponseWriter, c *call, err error) {
	SendErrorResponse(w, a.logger, err, c.errors.Errors())
}

func (a *API) done(w http.ResponseWriter, c *call, status int) {
	fieldErrors := c.errors.Errors()
	if fieldErrors == nil {
		fieldErrors = []core.FieldError{}
	}
	SendJSONResponse(w, a.logger, status, MutationResponse{Success: true, Errors: fieldErrors})
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 10<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.KindInvalidInput, "invalid request body", err)
	}
	return nil
}
