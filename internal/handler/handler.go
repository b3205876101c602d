// Package handler exposes the diagnosis service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/aidiag/internal/diagnosis"
	"github.com/pavelanni/aidiag/internal/health"
	"github.com/pavelanni/aidiag/internal/model"
)

const maxBodyBytes = 1 << 20

// AdminStore looks up admin accounts for basic auth.
type AdminStore interface {
	GetAdmin(ctx context.Context, username string) (*model.Admin, error)
}

// Config holds HTTP-level settings.
type Config struct {
	BasePath string
	Version  string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc    *diagnosis.Service
	admins AdminStore
	health *health.Monitor
	config Config
}

// New creates a new Handler. admins and mon may be nil; the admin routes
// are then not mounted and /health reports only uptime.
func New(svc *diagnosis.Service, admins AdminStore, mon *health.Monitor, cfg Config) *Handler {
	return &Handler{svc: svc, admins: admins, health: mon, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/status", h.handleStatus)

	r.Route("/diagnosis", func(r chi.Router) {
		r.Post("/submit", h.handleSubmit)
		r.Get("/result", h.handleResult)
		r.Get("/report/{diagnosisID}", h.handleReport)
		r.Get("/find-by-email", h.handleFindByEmail)
		r.Get("/status", h.handleDiagnosisStatus)
		r.Get("/catalog", h.handleCatalog)
	})

	if h.admins != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/diagnoses", h.handleAdminList)
			r.Post("/diagnoses/{diagnosisID}/notify", h.handleAdminNotify)
		})
	}
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the base path.
func (h *Handler) path(p string) string {
	return strings.TrimRight(h.config.BasePath, "/") + p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(html)); err != nil {
		slog.Error("write response", "error", err)
	}
}
