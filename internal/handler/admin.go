package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/aidiag/internal/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: CodeValidationFailed, Message: "limit must be a positive integer", Field: "limit"})
			return
		}
		limit = min(n, maxListLimit)
	}

	list, err := h.svc.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.DiagnosisSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagnoses": list, "count": len(list)})
}

func (h *Handler) handleAdminNotify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "diagnosisID")
	if err := h.svc.Resend(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	var by string
	if admin := model.AdminFromContext(r.Context()); admin != nil {
		by = admin.Username
	}
	slog.Info("notification resent", "diagnosis_id", id, "admin", by)
	writeJSON(w, http.StatusAccepted, map[string]any{"diagnosisId": id, "notified": true})
}
