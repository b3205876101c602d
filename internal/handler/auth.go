package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/aidiag/internal/model"
)

const adminRealm = `Basic realm="aidiag admin", charset="UTF-8"`

// requireAdmin is middleware that checks HTTP basic credentials against
// the admin accounts.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username == "" {
			h.unauthorized(w)
			return
		}

		admin, err := h.admins.GetAdmin(r.Context(), username)
		if err != nil {
			slog.Error("failed to get admin", "username", username, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Code: CodeInternal, Message: "internal error"})
			return
		}
		if admin == nil || !admin.Active {
			slog.Warn("admin login rejected", "username", username, "remote", r.RemoteAddr)
			h.unauthorized(w)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
			slog.Warn("admin login rejected", "username", username, "remote", r.RemoteAddr)
			h.unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(model.ContextWithAdmin(r.Context(), admin)))
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", adminRealm)
	writeJSON(w, http.StatusUnauthorized, errorBody{Code: CodeUnauthorized, Message: "admin credentials required"})
}
