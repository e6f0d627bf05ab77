package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// TabCookie names the cookie that identifies a browser tab's session.
const TabCookie = "reserv_tab"

type contextKey string

const tabIDKey contextKey = "tabID"

// TabSession assigns every request a tab id. A missing or malformed cookie
// gets a fresh random id, which is set on the response.
func TabSession(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(TabCookie); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     TabCookie,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), tabIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TabIDFromContext returns the tab id set by TabSession.
func TabIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tabIDKey).(string)
	return id, ok && id != ""
}
