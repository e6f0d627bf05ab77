package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/wolfman30/reserv/internal/observability/metrics"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/pkg/logging"
)

type fakeSession struct {
	mu      sync.Mutex
	token   string
	expired bool
	clears  int
}

func (f *fakeSession) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeSession) Expired(time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired
}

func (f *fakeSession) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.clears++
	return nil
}

func newTestClient(baseURL string, sess TokenSource, opts ...Option) *Client {
	return New(baseURL, sess, logging.New("error"), opts...)
}

func TestDoMergesHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &fakeSession{token: "tok-1"})
	header := http.Header{}
	header.Set("X-Trace", "abc")
	resp, err := c.Do(context.Background(), http.MethodGet, "/api/things", nil, header)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if got.Get("Authorization") != "Bearer tok-1" {
		t.Fatalf("Authorization = %q, want Bearer tok-1", got.Get("Authorization"))
	}
	if got.Get("Content-Type") != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", got.Get("Content-Type"))
	}
	if got.Get("X-Trace") != "abc" {
		t.Fatalf("X-Trace = %q, want abc", got.Get("X-Trace"))
	}
}

func TestDoCallerCannotDropBearer(t *testing.T) {
	var auth, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &fakeSession{token: "tok-1"})
	header := http.Header{}
	header.Set("Authorization", "Basic nope")
	header.Set("Content-Type", "text/plain")
	resp, err := c.Do(context.Background(), http.MethodPost, "/x", strings.NewReader("hi"), header)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if auth != "Bearer tok-1" {
		t.Fatalf("Authorization = %q, want bearer to win", auth)
	}
	if contentType != "text/plain" {
		t.Fatalf("Content-Type = %q, want caller override", contentType)
	}
}

func TestDoWithoutTokenOmitsAuthorization(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	for _, sess := range []TokenSource{nil, &fakeSession{}} {
		c := newTestClient(srv.URL, sess)
		resp, err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		resp.Body.Close()
		if auth != "" {
			t.Fatalf("Authorization = %q, want empty", auth)
		}
	}
}

func TestDoDropsExpiredToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	sess := &fakeSession{token: "old", expired: true}
	c := newTestClient(srv.URL, sess)
	resp, err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if auth != "" {
		t.Fatalf("Authorization = %q, want empty for expired token", auth)
	}
	if sess.clears != 1 {
		t.Fatalf("clears = %d, want 1", sess.clears)
	}
}

func TestDoReturnsNon2xxWithReadableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Slot already taken"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &fakeSession{token: "tok"})
	resp, err := c.Do(context.Background(), http.MethodPost, "/api/appointment", nil, nil)
	if err != nil {
		t.Fatalf("Do() error = %v, want nil for non-2xx", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if ErrorMessage(body) != "Slot already taken" {
		t.Fatalf("body message = %q", ErrorMessage(body))
	}
}

func TestDoUnauthorizedClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	store, err := session.Open(ctx, session.NewMemoryStorage(), "tab-1", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.Set(ctx, "tok", session.Profile{Email: "a@b.c", Role: session.RoleClient}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewAPIMetrics(reg)
	c := newTestClient(srv.URL, store, WithMetrics(m))
	resp, err := c.Do(ctx, http.MethodGet, "/api/provider/services", nil, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if store.IsLoggedIn() {
		t.Fatal("IsLoggedIn() = true after 401, want false")
	}
	if got := counterValue(t, reg, "reserv_api_unauthorized_session_clears_total"); got != 1 {
		t.Fatalf("sessions cleared = %v, want 1", got)
	}
}

func TestDoCanceledContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(srv.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Do(ctx, http.MethodGet, "/slow", nil, nil)
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		if !IsCanceled(err) {
			t.Fatalf("IsCanceled(%v) = false, want true", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestIsCanceledIgnoresDeadline(t *testing.T) {
	if IsCanceled(context.DeadlineExceeded) {
		t.Fatal("IsCanceled(DeadlineExceeded) = true, want false")
	}
	if IsCanceled(errors.New("boom")) {
		t.Fatal("IsCanceled(generic) = true, want false")
	}
	if !IsCanceled(errors.Join(errors.New("wrap"), context.Canceled)) {
		t.Fatal("IsCanceled(wrapped canceled) = false, want true")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"message":"Email already exists"}`, "Email already exists"},
		{`{"error":"Bad Request","status":400}`, "Bad Request"},
		{`{"status":500}`, ""},
		{"plain failure text\n", "plain failure text"},
		{"", ""},
		{"{not json", "{not json"},
	}
	for _, tt := range tests {
		if got := ErrorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("ErrorMessage(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"/api/appointment/42":                              "DELETE /api/appointment/{id}",
		"/api/appointments/available-slots?serviceId=1&t=2": "DELETE /api/appointments/available-slots",
	}
	for path, want := range tests {
		if got := endpointLabel(http.MethodDelete, path); got != want {
			t.Errorf("endpointLabel(%q) = %q, want %q", path, got, want)
		}
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += counterOf(metric)
		}
	}
	return total
}

func counterOf(m *dto.Metric) float64 {
	if m.GetCounter() == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
