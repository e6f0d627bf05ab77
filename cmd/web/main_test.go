package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/reserv/internal/apiclient/apitest"
	appconfig "github.com/wolfman30/reserv/internal/config"
	httpmiddleware "github.com/wolfman30/reserv/internal/http/middleware"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/pkg/logging"
)

func TestSetupMetricsExposesRuntimeCollectors(t *testing.T) {
	handler, reg := setupMetrics()
	if handler == nil || reg == nil {
		t.Fatalf("expected non-nil handler and registry")
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go collector output")
	}
}

func TestNewAppServesLoginAndMetrics(t *testing.T) {
	backend := apitest.NewBackend()
	defer backend.Close()

	cfg := &appconfig.Config{
		APIBaseURL:           backend.URL,
		APITimeout:           2 * time.Second,
		WorkspaceIdleTimeout: time.Minute,
		LoginRatePerMinute:   60,
		LoginRateBurst:       5,
	}
	a := newApp(cfg, session.NewMemoryStorage(), logging.New("error"))
	defer a.manager.Close()
	if a.limiter == nil {
		t.Fatalf("expected login limiter")
	}

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/session")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	resp.Body.Close()
	var tab *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == httpmiddleware.TabCookie {
			tab = c
		}
	}
	if tab == nil {
		t.Fatalf("expected tab cookie")
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/session/login",
		strings.NewReader(`{"email":"client@example.com","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(tab)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected login 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `reserv_api_requests_total{endpoint="POST /api/login",status="2xx"} 1`) {
		t.Fatalf("expected login request counted, got:\n%s", body)
	}
}
