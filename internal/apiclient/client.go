// Package apiclient is the authenticated HTTP client for the scheduling API.
// Client.Do never fails on an HTTP status; the typed endpoint helpers turn
// non-2xx responses into *APIError values.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfman30/reserv/internal/observability/metrics"
	"github.com/wolfman30/reserv/pkg/logging"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 15 * time.Second
	maxLoggedBody  = 300
)

// TokenSource is the slice of the session store the client needs.
// *session.Store satisfies it.
type TokenSource interface {
	Token() string
	Expired(now time.Time) bool
	Clear(ctx context.Context) error
}

// Client wraps calls to the scheduling API for one session.
type Client struct {
	httpClient *http.Client
	baseURL    string
	session    TokenSource
	logger     *logging.Logger
	metrics    *metrics.APIMetrics
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithMetrics(m *metrics.APIMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides the clock used for token freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a client. session may be nil for anonymous use.
func New(baseURL string, session TokenSource, logger *logging.Logger, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends one request. Content-Type defaults to application/json, caller
// headers override it, and a bearer token is attached when the session
// holds a fresh one. Non-2xx responses are returned without error; their
// body is logged and remains readable by the caller. A 401 clears the
// session before Do returns.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	return c.do(ctx, endpointLabel(method, path), method, path, body, header)
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if token := c.freshToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := "error"
		if IsCanceled(err) {
			outcome = "canceled"
		} else {
			c.logger.Warn("scheduling API request failed", "method", method, "path", path, "error", err)
		}
		c.metrics.ObserveRequest(endpoint, outcome, elapsed)
		return nil, fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	c.metrics.ObserveRequest(endpoint, metrics.StatusClass(resp.StatusCode), elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			raw = nil
		}
		resp.Body = io.NopCloser(bytes.NewReader(raw))

		msg := string(raw)
		if len(msg) > maxLoggedBody {
			msg = msg[:maxLoggedBody]
		}
		c.logger.Warn("scheduling API non-2xx response", "status", resp.StatusCode, "method", method, "path", path, "body", msg)

		if resp.StatusCode == http.StatusUnauthorized {
			c.clearSession(ctx, "unauthorized")
		}
	}
	return resp, nil
}

// freshToken reads the token at send time. An expired JWT is dropped from
// the session instead of being sent.
func (c *Client) freshToken(ctx context.Context) string {
	if c.session == nil {
		return ""
	}
	token := c.session.Token()
	if token == "" {
		return ""
	}
	if c.session.Expired(c.now()) {
		c.clearSession(ctx, "expired")
		return ""
	}
	return token
}

func (c *Client) clearSession(ctx context.Context, reason string) {
	if c.session == nil {
		return
	}
	if err := c.session.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("session clear failed", "reason", reason, "error", err)
	}
	c.metrics.ObserveSessionCleared()
	c.logger.Info("session cleared", "reason", reason)
}

// endpointLabel strips the query and collapses id-like path segments so
// metric labels stay bounded.
func endpointLabel(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg != "" && isIDSegment(seg) {
			segments[i] = "{id}"
		}
	}
	return method + " " + strings.Join(segments, "/")
}

func isIDSegment(seg string) bool {
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
