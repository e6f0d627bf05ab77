package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wolfman30/reserv/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/reserv/internal/http/middleware"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/pkg/logging"
)

// ServiceName names the server spans.
const ServiceName = "reserv-web"

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Handler            *handlers.Handler
	MetricsHandler     http.Handler
	MetricsToken       string
	CORSAllowedOrigins []string

	// CookieSecure marks the tab cookie Secure.
	CookieSecure bool

	// LoginLimiter throttles login and registration per client IP. Nil
	// disables throttling.
	LoginLimiter *httpmiddleware.RateLimiter

	// DisableTracing skips the otelhttp wrapper.
	DisableTracing bool
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()
	h := cfg.Handler

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.TabSession(cfg.CookieSecure))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	throttle := func(next http.Handler) http.Handler { return next }
	if cfg.LoginLimiter != nil {
		throttle = httpmiddleware.RateLimit(cfg.LoginLimiter)
	}
	loggedIn := httpmiddleware.RequireRole(h.Identity)
	clients := httpmiddleware.RequireRole(h.Identity, session.RoleClient)
	providers := httpmiddleware.RequireRole(h.Identity, session.RoleProvider)

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", h.Health)
		if cfg.MetricsHandler != nil {
			public.With(requireMetricsToken(cfg.MetricsToken)).Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/session", func(s chi.Router) {
			s.Get("/", h.GetSession)
			s.With(throttle).Post("/login", h.Login)
			s.Post("/logout", h.Logout)
			s.Get("/events", h.Events)
		})

		api.Route("/register", func(reg chi.Router) {
			reg.Use(throttle)
			reg.Post("/", h.RegisterAccount)
			reg.Post("/client", h.RegisterClient)
			reg.Post("/provider", h.RegisterProvider)
			reg.Post("/service", h.RegisterService)
		})

		api.With(loggedIn).Get("/catalog", h.GetCatalog)
		api.With(loggedIn).Get("/profile", h.GetProfile)

		api.Route("/appointments", func(a chi.Router) {
			a.Use(loggedIn)
			a.Get("/", h.ListAppointments)
			a.Delete("/{id}", h.DeleteAppointment)
		})

		api.Route("/booking", func(b chi.Router) {
			b.Use(clients)
			b.Post("/", h.OpenBooking)
			b.Get("/", h.GetBooking)
			b.Delete("/", h.CloseBooking)
			b.Post("/date", h.SelectDate)
			b.Post("/slot", h.SelectSlot)
			b.Post("/confirm", h.ConfirmBooking)
			b.Post("/navigate", h.NavigateNow)
		})

		api.Route("/provider", func(p chi.Router) {
			p.Use(providers)
			p.Get("/service", h.GetProviderService)
			p.Put("/service", h.UpdateProviderService)
		})
	})

	if cfg.DisableTracing {
		return r
	}
	return otelhttp.NewHandler(r, ServiceName,
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/metrics"
		}),
	)
}
