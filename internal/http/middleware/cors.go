package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders = "Content-Type, Cache-Control, " + RequestIDHeader
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
)

// corsPolicy is the set of browser origins allowed to call the tab API.
type corsPolicy struct {
	anyOrigin bool
	origins   map[string]struct{}
}

func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{origins: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		switch origin = strings.TrimSpace(origin); origin {
		case "":
		case "*":
			p.anyOrigin = true
		default:
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

func (p corsPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.anyOrigin {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// CORS lets the listed front-end origins call the API with the tab cookie
// attached. "*" echoes any origin, since credentialed responses cannot
// carry a literal wildcard. Preflights are answered here and never reach
// the session layer.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if policy.allows(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Expose-Headers", RequestIDHeader)
				h.Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
