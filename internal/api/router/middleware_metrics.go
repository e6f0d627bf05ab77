package router

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const metricsTokenHeader = "X-Metrics-Token"

// requireMetricsToken guards the scrape endpoint with a shared token sent
// as a bearer token or in X-Metrics-Token. When expected is empty, the
// middleware is a no-op.
func requireMetricsToken(expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get(metricsTokenHeader))
			if token == "" {
				token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				http.Error(w, "invalid metrics token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
