package handler

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/alicorn/internal/store"
)

// AdminUsername is the only account accepted by requireAdmin.
const AdminUsername = "admin"

// requireAdmin checks HTTP basic credentials against the admin password hash
// stored in the database. Admin routes are closed when no hash is stored.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash, err := h.store.GetMetadata(store.MetaAdminPasswordHash)
		if err != nil {
			writeInternal(w, r, err)
			return
		}
		if hash == "" {
			writeError(w, r, http.StatusForbidden, "ErrAdminDisabled")
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || username != AdminUsername ||
			bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			slog.Warn("admin authentication failed", "remote_addr", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Basic realm="alicorn"`)
			writeError(w, r, http.StatusUnauthorized, "ErrUnauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
