package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/reserv/internal/api/router"
	"github.com/wolfman30/reserv/internal/app/bootstrap"
	appconfig "github.com/wolfman30/reserv/internal/config"
	"github.com/wolfman30/reserv/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/reserv/internal/http/middleware"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/internal/telemetry"
	"github.com/wolfman30/reserv/internal/workspace"
	"github.com/wolfman30/reserv/pkg/logging"
)

func main() {
	// A missing .env is fine; the environment wins.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting reserv web server",
		"env", cfg.Env,
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, router.ServiceName, cfg.OTLPEndpoint, cfg.OTLPInsecure, logger)

	storage, redisClient := bootstrap.BuildSessionStorage(ctx, cfg, logger)
	app := newApp(cfg, storage, logger)

	go app.manager.Run(ctx)
	if app.limiter != nil {
		go app.limiter.Run(ctx.Done())
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Closing workspaces ends open event streams, which Shutdown does not
	// wait for.
	stop()
	app.manager.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close failed", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type app struct {
	handler  http.Handler
	manager  *workspace.Manager
	limiter  *httpmiddleware.RateLimiter
	registry *prometheus.Registry
}

// newApp wires the workspace manager, metrics and router.
func newApp(cfg *appconfig.Config, storage session.Storage, logger *logging.Logger) *app {
	metricsHandler, registry := setupMetrics()
	manager := bootstrap.BuildWorkspaceManager(cfg, storage, registry, logger)
	limiter := bootstrap.BuildLoginLimiter(cfg)

	h := router.New(&router.Config{
		Logger:             logger,
		Handler:            handlers.New(manager, logger),
		MetricsHandler:     metricsHandler,
		MetricsToken:       cfg.MetricsToken,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CookieSecure:       cfg.SessionCookieSecure,
		LoginLimiter:       limiter,
		DisableTracing:     cfg.OTLPEndpoint == "",
	})
	return &app{handler: h, manager: manager, limiter: limiter, registry: registry}
}

// setupMetrics returns a scrape handler over a private registry carrying
// the Go runtime and process collectors.
func setupMetrics() (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), reg
}
