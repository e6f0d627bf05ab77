package bootstrap

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	appconfig "github.com/wolfman30/reserv/internal/config"
	httpmiddleware "github.com/wolfman30/reserv/internal/http/middleware"
	"github.com/wolfman30/reserv/internal/observability/metrics"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/internal/workspace"
	"github.com/wolfman30/reserv/pkg/logging"
)

// BuildWorkspaceManager wires the per-tab workspaces to the scheduling API.
// Metrics register on reg when it is non-nil. Every workspace shares one
// traced HTTP transport.
func BuildWorkspaceManager(cfg *appconfig.Config, storage session.Storage, reg prometheus.Registerer, logger *logging.Logger) *workspace.Manager {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []workspace.Option{
		workspace.WithHTTPClient(&http.Client{
			Timeout:   cfg.APITimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}
	if reg != nil {
		opts = append(opts,
			workspace.WithAPIMetrics(metrics.NewAPIMetrics(reg)),
			workspace.WithWorkflowMetrics(metrics.NewWorkflowMetrics(reg)),
		)
	}
	return workspace.NewManager(workspace.Settings{
		APIBaseURL:   cfg.APIBaseURL,
		APITimeout:   cfg.APITimeout,
		ConfirmDelay: cfg.BookingConfirmDelay,
		NoticeDelay:  cfg.NoticeDismissDelay,
		IdleTimeout:  cfg.WorkspaceIdleTimeout,
		Location:     time.Local,
	}, storage, logger, opts...)
}

// BuildLoginLimiter returns the per-IP limiter for login and registration,
// or nil when LOGIN_RATE_PER_MINUTE is not positive.
func BuildLoginLimiter(cfg *appconfig.Config) *httpmiddleware.RateLimiter {
	if cfg == nil || cfg.LoginRatePerMinute <= 0 {
		return nil
	}
	return httpmiddleware.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginRateBurst)
}
