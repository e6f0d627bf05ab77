package middleware

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/wolfman30/reserv/internal/session"
)

const (
	MsgLoginRequired = "Please log in to continue."
	MsgForbidden     = "This page is not available for your account."
)

// Identity resolves the session behind a request.
type Identity func(r *http.Request) (loggedIn bool, role session.Role, err error)

// RequireRole rejects requests from logged-out tabs with 401 and from
// other roles with 403. With no roles, any logged-in tab passes.
func RequireRole(identify Identity, roles ...session.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loggedIn, role, err := identify(r)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "Session unavailable. Please try again.")
				return
			}
			if !loggedIn {
				writeError(w, http.StatusUnauthorized, MsgLoginRequired)
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, role) {
				writeError(w, http.StatusForbidden, MsgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
