package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/auth"
	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/internal/errs"
)

// TransferRequest is the body of a transfer call
type TransferRequest struct {
	From     string      `json:"from"`
	FromPath string      `json:"from_path"`
	To       string      `json:"to"`
	ToPath   string      `json:"to_path"`
	Method   core.Method `json:"method"`
}

// TransferPlanResponse previews a planned transfer
type TransferPlanResponse struct {
	Kind      core.EntryKind      `json:"kind"`
	Container string              `json:"container"`
	Entries   []core.ListingEntry `json:"entries,omitempty"`
	File      *core.ObjectContent `json:"file,omitempty"`
}

func planResponse(plan *core.TransferPlan) TransferPlanResponse {
	return TransferPlanResponse{
		Kind:      plan.Request.Kind,
		Container: plan.Request.Container,
		Entries:   plan.Entries,
		File:      plan.File,
	}
}

// plan resolves a transfer body against the registry.
func (a *API) plan(ctx context.Context, req TransferRequest) (*core.TransferPlan, error) {
	if req.Method == "" {
		req.Method = core.MethodCopy
	}
	if req.Method != core.MethodCopy && req.Method != core.MethodMove {
		return nil, errs.Newf(errs.KindInvalidInput, "unknown transfer method %q", req.Method)
	}
	if err := validateAll(req.FromPath, req.ToPath); err != nil {
		return nil, err
	}

	from, err := a.registry.Get(req.From)
	if err != nil {
		return nil, err
	}
	to, err := a.registry.Get(req.To)
	if err != nil {
		return nil, err
	}
	return core.PlanTransfer(ctx, from, req.FromPath, to, req.ToPath, req.Method)
}

// PlanTransfer handles POST /v1/transfers/plan
func (a *API) PlanTransfer(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, auth.ActionView)
	if !ok {
		return
	}

	var req TransferRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, c, err)
		return
	}

	plan, err := a.plan(c.ctx, req)
	if err != nil {
		a.fail(w, c, err)
		return
	}
	SendJSONResponse(w, a.logger, http.StatusOK, planResponse(plan))
}

// Transfer handles POST /v1/transfers. Per-object failures are part of the
// report. A transfer stopped by cancellation answers with the error and the
// partial report.
func (a *API) Transfer(w http.ResponseWriter, r *http.Request) {
	c, ok := a.begin(w, r, auth.ActionTransfer)
	if !ok {
		return
	}

	var req TransferRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, c, err)
		return
	}

	plan, err := a.plan(c.ctx, req)
	if err != nil {
		a.fail(w, c, err)
		return
	}

	report, err := a.engine.Transfer(c.ctx, plan.Request, nil)
	a.sendTransferResult(w, c, report, err)
}

// TransferFailureResponse is an error response carrying the report of the
// objects handled before the transfer stopped
type TransferFailureResponse struct {
	ErrorResponse
	Report *core.TransferReport `json:"report"`
}

func (a *API) sendTransferResult(w http.ResponseWriter, c *call, report *core.TransferReport, err error) {
	switch {
	case err == nil:
		SendJSONResponse(w, a.logger, http.StatusOK, report)
	case report == nil:
		a.fail(w, c, err)
	default:
		status, code := StatusForError(err)
		SendJSONResponse(w, a.logger, status, TransferFailureResponse{
			ErrorResponse: ErrorResponse{Code: code, Message: err.Error(), Errors: c.errors.Errors()},
			Report:        report,
		})
		a.logger.Info("Transfer stopped early",
			zap.String("transfer_id", report.ID.String()),
			zap.Int("transferred", len(report.Transferred)),
			zap.Error(err))
	}
}
