package handler

import (
	"net/http"
	"time"

	"github.com/pavelanni/aidiag/internal/health"
)

type statusResponse struct {
	health.Report
	Version    string    `json:"version,omitempty"`
	Scheme     string    `json:"scheme"`
	Catalog    string    `json:"catalog"`
	Diagnoses  int       `json:"trackedDiagnoses"`
	ServerTime time.Time `json:"serverTime"`
}

func (h *Handler) report() health.Report {
	if h.health == nil {
		return health.Report{Status: health.StatusUnknown}
	}
	return h.health.Snapshot()
}

// handleHealth answers 200 unless a critical check is failing.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	rep := h.report()
	status := http.StatusOK
	if rep.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": rep.Status,
		"score":  rep.Score,
		"uptime": rep.Uptime,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Report:     h.report(),
		Version:    h.config.Version,
		Scheme:     h.svc.Scheme().Name,
		Catalog:    h.svc.Catalog().Name(),
		Diagnoses:  h.svc.Tracker().Len(),
		ServerTime: time.Now().UTC(),
	})
}
