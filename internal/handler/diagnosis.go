package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/aidiag/internal/diagnosis"
	appI18n "github.com/pavelanni/aidiag/internal/i18n"
	"github.com/pavelanni/aidiag/internal/model"
)

type submitResponse struct {
	DiagnosisID      string   `json:"diagnosisId"`
	EstimatedTime    string   `json:"estimatedTime"`
	EstimatedSeconds int      `json:"estimatedSeconds"`
	Warnings         []string `json:"warnings"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub diagnosis.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&sub); err != nil {
		writeError(w, r, &diagnosis.ValidationError{
			Field:   "body",
			Code:    diagnosis.CodeInvalidFormat,
			Message: "request body is not valid JSON",
		})
		return
	}

	receipt, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := submitResponse{
		DiagnosisID:      receipt.DiagnosisID,
		EstimatedSeconds: int(receipt.EstimatedTime.Seconds()),
		Warnings:         receipt.Warnings,
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if receipt.EstimatedTime > 0 {
		minutes := int(math.Ceil(receipt.EstimatedTime.Minutes()))
		resp.EstimatedTime = appI18n.Td(r.Context(), "EstimatedTime", map[string]any{"Minutes": minutes})
	} else {
		resp.EstimatedTime = appI18n.T(r.Context(), "EstimatedTimeDataOnly")
	}
	w.Header().Set("Location", h.path("/diagnosis/report/"+receipt.DiagnosisID))
	writeJSON(w, http.StatusCreated, resp)
}

type resultResponse struct {
	DiagnosisID   string                `json:"diagnosisId"`
	ReportHTML    string                `json:"reportHtml"`
	Scores        []model.CategoryScore `json:"scores"`
	OverallScore  int                   `json:"overallScore"`
	Grade         string                `json:"grade"`
	MaturityLevel string                `json:"maturityLevel"`
	ReportKind    string                `json:"reportKind"`
	ResolvedBy    string                `json:"resolvedBy,omitempty"`
	ReportURL     string                `json:"reportUrl,omitempty"`
	CreatedAt     string                `json:"createdAt"`
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := diagnosis.RetrieveOptions{RequireNarrative: strings.EqualFold(q.Get("quality"), "ai")}
	rep, err := h.svc.Retrieve(r.Context(), q.Get("diagnosisId"), q.Get("email"), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{
		DiagnosisID:   rep.Result.DiagnosisID,
		ReportHTML:    rep.HTML,
		Scores:        rep.Result.CategoryScores,
		OverallScore:  rep.Result.OverallScore,
		Grade:         rep.Result.Grade,
		MaturityLevel: rep.Result.MaturityLevel,
		ReportKind:    string(rep.Kind),
		ResolvedBy:    rep.ResolvedBy,
		ReportURL:     rep.ReportURL,
		CreatedAt:     rep.Result.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "diagnosisID")
	rep, err := h.svc.Retrieve(r.Context(), id, r.URL.Query().Get("email"), diagnosis.RetrieveOptions{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeHTML(w, rep.HTML)
}

func (h *Handler) handleFindByEmail(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.FindByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"diagnosis":  summary,
		"resolvedBy": diagnosis.ResolvedByRecency,
	})
}

func (h *Handler) handleDiagnosisStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("diagnosisId"))
	if id == "" {
		writeError(w, r, &diagnosis.ValidationError{Field: "diagnosisId", Code: diagnosis.CodeRequired, Message: "diagnosisId is required"})
		return
	}
	snap, ok := h.svc.Status(id)
	if !ok {
		writeError(w, r, diagnosis.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type schemeInfo struct {
	Name     string   `json:"name"`
	Policy   string   `json:"policy"`
	MinScore int      `json:"minScore"`
	MaxScore int      `json:"maxScore"`
	Grades   []string `json:"grades"`
	Maturity string   `json:"maturity"`
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	scheme := h.svc.Scheme()
	lo, hi := scheme.Policy.Range()
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog": h.svc.Catalog(),
		"scheme": schemeInfo{
			Name:     scheme.Name,
			Policy:   scheme.Policy.Name(),
			MinScore: lo,
			MaxScore: hi,
			Grades:   scheme.Grades.Labels(),
			Maturity: scheme.Maturity.Name(),
		},
	})
}
