package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oakleydye/oakley-metrics/internal/config"
	"github.com/oakleydye/oakley-metrics/internal/handler"
	"github.com/oakleydye/oakley-metrics/internal/middleware"
	apierrors "github.com/oakleydye/oakley-metrics/internal/pkg/errors"
	"github.com/oakleydye/oakley-metrics/internal/pkg/response"
)

// readinessCheck pings one dependency.
type readinessCheck struct {
	name string
	ping func(context.Context) error
}

// routerDeps is everything the HTTP surface needs.
type routerDeps struct {
	logger        *slog.Logger
	server        config.ServerConfig
	rateLimit     config.RateLimitConfig
	sessions      middleware.SessionValidator
	limiter       middleware.Counter
	checks        []readinessCheck
	auth          *handler.AuthHandler
	organizations *handler.OrganizationHandler
	websites      *handler.WebsiteHandler
	clients       *handler.ClientHandler
	metrics       *handler.MetricsHandler
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(d.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(d.server.AllowedOrigins))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/health", healthHandler())
	r.Get("/ready", readyHandler(d.checks))
	r.Handle("/metrics", promhttp.Handler())

	authenticate := middleware.Authenticate(d.sessions)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.limiter, d.rateLimit, d.logger))

		r.Mount("/auth", d.auth.Routes(authenticate))

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Mount("/organizations", d.organizations.Routes())
			r.Mount("/websites", d.websites.Routes())
			r.Mount("/clients", d.clients.Routes())
			d.metrics.Mount(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route")
	})

	return r
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	}
}

func readyHandler(checks []readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		for _, c := range checks {
			if err := c.ping(ctx); err != nil {
				response.Error(w, apierrors.ErrServiceUnavailable.WithDetails(map[string]string{
					"component": c.name,
				}))
				return
			}
			status[c.name] = "connected"
		}
		response.OK(w, status)
	}
}
