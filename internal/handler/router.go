package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/bloodbank/internal/notify"
	"github.com/aryan0dhankhar/bloodbank/internal/observability/metrics"
	"github.com/aryan0dhankhar/bloodbank/internal/security/audit"
	"github.com/aryan0dhankhar/bloodbank/internal/security/middleware"
	"github.com/aryan0dhankhar/bloodbank/internal/security/ratelimit"
	"github.com/aryan0dhankhar/bloodbank/internal/service"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Donors   *service.DonorService
	Requests *service.RequestService
	Stats    *service.StatsService
	Auth     *service.AuthService
	Hub      *notify.Hub
	Audit    *audit.Logger

	// Checks gate /readyz.
	Checks map[string]Pinger

	// PublicLimiter guards anonymous writes; LoginLimiter guards login.
	// Nil disables the limit.
	PublicLimiter *ratelimit.Limiter
	LoginLimiter  *ratelimit.Limiter

	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter wires routes and middleware. The result is wrapped for tracing.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	if d.Audit == nil {
		d.Audit = audit.NewLogger(log)
	}

	health := NewHealthHandler(d.Checks, log)
	donors := NewDonorHandler(d.Donors, log)
	requests := NewRequestHandler(d.Requests, log)
	stats := NewStatsHandler(d.Stats, log)
	authH := NewAuthHandler(d.Auth, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(log))
	r.Use(metrics.HTTPMetricsMiddleware)
	r.Use(middleware.CORS(d.AllowedOrigins))
	r.Use(middleware.SanitizeQuery(log))
	r.Use(middleware.ValidateJSONContentType(log))

	r.Get("/healthz", health.Health)
	r.Get("/readyz", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	requireAdmin := middleware.RequireAdmin(d.Auth, log)

	r.Route("/api", func(r chi.Router) {
		r.With(limit(d.PublicLimiter, log)...).Post("/donors", donors.Register)
		r.Get("/donors/availability", donors.Availability)
		r.With(limit(d.PublicLimiter, log)...).Post("/requests", requests.Submit)
		r.Method(http.MethodGet, "/stats", stats)
		r.With(limit(d.LoginLimiter, log)...).Post("/admin/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Use(middleware.Audit(d.Audit))

			r.Post("/admin/logout", authH.Logout)
			r.Get("/admin/session", authH.Session)
			r.Get("/donors", donors.List)
			r.Get("/requests", requests.List)
			r.Get("/requests/{id}", requests.Get)
			r.Put("/requests/{id}/status", requests.UpdateStatus)
		})
	})

	if d.Hub != nil {
		r.With(requireAdmin).Method(http.MethodGet, "/ws/requests", NewEventsHandler(d.Hub, d.AllowedOrigins, log))
	}

	return otelhttp.NewHandler(r, "bloodbank.http")
}

func limit(l *ratelimit.Limiter, log *slog.Logger) []func(http.Handler) http.Handler {
	if l == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{middleware.RateLimit(l, log)}
}
