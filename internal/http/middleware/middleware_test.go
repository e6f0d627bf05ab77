package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/pkg/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestTabSessionIssuesCookie(t *testing.T) {
	var seen string
	handler := TabSession(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = TabIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != TabCookie {
		t.Fatalf("expected %s cookie, got %v", TabCookie, cookies)
	}
	if cookies[0].Value != seen {
		t.Fatalf("context id %q does not match cookie %q", seen, cookies[0].Value)
	}
	if !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Fatalf("expected HttpOnly and Secure cookie")
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected uuid tab id, got %q", seen)
	}
}

func TestTabSessionKeepsValidCookie(t *testing.T) {
	id := uuid.NewString()
	var seen string
	handler := TabSession(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = TabIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: TabCookie, Value: id})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != id {
		t.Fatalf("expected %q, got %q", id, seen)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected no new cookie")
	}
}

func TestTabSessionReplacesMalformedCookie(t *testing.T) {
	var seen string
	handler := TabSession(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = TabIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: TabCookie, Value: "../../etc"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen == "../../etc" || seen == "" {
		t.Fatalf("expected a fresh id, got %q", seen)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		loggedIn bool
		role     session.Role
		err      error
		allowed  []session.Role
		want     int
	}{
		{"logged out", false, session.RoleNone, nil, nil, http.StatusUnauthorized},
		{"any logged in", true, session.RoleClient, nil, nil, http.StatusOK},
		{"matching role", true, session.RoleProvider, nil, []session.Role{session.RoleProvider}, http.StatusOK},
		{"other role", true, session.RoleClient, nil, []session.Role{session.RoleProvider}, http.StatusForbidden},
		{"lookup failure", false, session.RoleNone, errors.New("redis down"), nil, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identify := func(*http.Request) (bool, session.Role, error) { return tt.loggedIn, tt.role, tt.err }
			rec := httptest.NewRecorder()
			RequireRole(identify, tt.allowed...)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/booking", nil))
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
			if tt.want != http.StatusOK && !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("expected JSON error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewRateLimiter(60, 2)
	handler := RateLimit(limiter)(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/session/login", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", got)
	}
	if got := send("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("second request: expected 200, got %d", got)
	}
	if got := send("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("third request: expected 429, got %d", got)
	}
	if got := send("10.0.0.2"); got != http.StatusOK {
		t.Fatalf("other ip: expected 200, got %d", got)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return base }
	limiter.Allow("10.0.0.1")

	limiter.Sweep(base.Add(limiterIdleTTL / 2))
	if len(limiter.buckets) != 1 {
		t.Fatalf("expected bucket to survive")
	}
	limiter.Sweep(base.Add(2 * limiterIdleTTL))
	if len(limiter.buckets) != 0 {
		t.Fatalf("expected bucket to be evicted")
	}
}

func TestRequestLoggerEchoesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "req-1" {
		t.Fatalf("expected request id echo, got %q", got)
	}
	line := buf.String()
	if !strings.Contains(line, `"status":418`) || !strings.Contains(line, `"request_id":"req-1"`) {
		t.Fatalf("unexpected log line %q", line)
	}
}
