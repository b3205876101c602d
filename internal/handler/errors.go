package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/aidiag/internal/diagnosis"
	appI18n "github.com/pavelanni/aidiag/internal/i18n"
)

// Stable error codes returned to clients.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
	CodeCollaboratorTimeout = "COLLABORATOR_TIMEOUT"
	CodeNotificationFailed  = "NOTIFICATION_FAILED"
	CodeAIReportUnavailable = "AI_REPORT_UNAVAILABLE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternal            = "INTERNAL"
)

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Field      string `json:"field,omitempty"`
	Retryable  bool   `json:"retryable"`
}

// classify maps a service error to an HTTP status and response body.
func classify(err error) (int, errorBody) {
	var (
		verr *diagnosis.ValidationError
		qerr *diagnosis.QualityGateError
		cerr *diagnosis.CollaboratorError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Code: CodeValidationFailed, Message: verr.Message, Field: verr.Field}
	case errors.Is(err, diagnosis.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: CodeNotFound, Message: "diagnosis not found"}
	case errors.As(err, &qerr):
		return http.StatusServiceUnavailable, errorBody{Code: CodeAIReportUnavailable, Message: qerr.Reason, Retryable: true}
	case errors.As(err, &cerr):
		body := errorBody{Code: CodeStorageUnavailable, Message: "the data store is unavailable", Retryable: true}
		if cerr.Op == "notify" {
			body = errorBody{Code: CodeNotificationFailed, Message: "sending the notification failed", Retryable: true}
		}
		if cerr.Timeout() {
			body.Code, body.Message = CodeCollaboratorTimeout, "an upstream service timed out"
		}
		return http.StatusInternalServerError, body
	}
	return http.StatusInternalServerError, errorBody{Code: CodeInternal, Message: "internal error"}
}

// writeError logs err and writes the matching JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "code", body.Code, "error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "code", body.Code, "error", err)
	}
	body.Suggestion = appI18n.TOr(r.Context(), "Suggest_"+body.Code, "Suggest_"+CodeInternal)
	writeJSON(w, status, body)
}
