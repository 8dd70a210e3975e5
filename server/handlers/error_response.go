package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/auth"
	"github.com/ebogdum/mediasource/core"
	"github.com/ebogdum/mediasource/internal/errs"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

// MutationResponse is returned by successful write operations
type MutationResponse struct {
	Success bool              `json:"success"`
	Errors  []core.FieldError `json:"errors"`
}

// StatusForError maps an error onto its HTTP status and error code
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return http.StatusUnauthorized, "AUTHENTICATION_FAILED"
	case errors.Is(err, auth.ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED"
	}

	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case errs.KindAlreadyExists:
		return http.StatusConflict, "ALREADY_EXISTS"
	case errs.KindUnsupported:
		return http.StatusUnprocessableEntity, "UNSUPPORTED"
	case errs.KindInvalidInput:
		return http.StatusBadRequest, "INVALID_INPUT"
	case errs.KindBusy:
		return http.StatusLocked, "BUSY"
	case errs.KindLocalIOFailure:
		return http.StatusInternalServerError, "LOCAL_IO_FAILURE"
	case errs.KindBackendFailure:
		return http.StatusBadGateway, "BACKEND_FAILURE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// SendErrorResponse sends a standardized JSON error response. fieldErrors
// are the errors accumulated by the source during the request.
func SendErrorResponse(w http.ResponseWriter, logger *zap.Logger, err error, fieldErrors []core.FieldError) {
	statusCode, errorCode := StatusForError(err)

	SendJSONResponse(w, logger, statusCode, ErrorResponse{
		Code:    errorCode,
		Message: err.Error(),
		Errors:  fieldErrors,
	})

	logger.Info("Error response sent",
		zap.String("error_code", errorCode),
		zap.Int("status_code", statusCode),
		zap.Error(err))
}

// SendJSONResponse sends a JSON response with any data structure
func SendJSONResponse(w http.ResponseWriter, logger *zap.Logger, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
