// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mockapi wires the development backend: the REST API the client core
talks to, plus the realtime hub, behind one [http.Server].

Architecture:

  - This package is the composition root of the development backend.
  - Domain packages (auth, leads, hub) never import it.
  - Only this package and cmd/mockapi start net/http servers.
*/
package mockapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taibuivan/leadcrm/internal/mockapi/auth"
	"github.com/taibuivan/leadcrm/internal/mockapi/hub"
	"github.com/taibuivan/leadcrm/internal/mockapi/leads"
	"github.com/taibuivan/leadcrm/internal/platform/config"
	"github.com/taibuivan/leadcrm/internal/platform/constants"
	"github.com/taibuivan/leadcrm/internal/platform/middleware"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	hub        *hub.Hub
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups every HTTP handler set of the backend.
type Handlers struct {
	// Liveness is the /health handler; always 200 while the process runs.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler; 200 when every dependency answers.
	Readiness http.HandlerFunc

	// Auth serves /api/auth.
	Auth *auth.Handler

	// Leads serves /api/leads and /api/dashboard.
	Leads *leads.Handler

	// Realtime serves /realtime.
	Realtime *hub.Hub

	// Gatherer backs /metrics; nil hides the endpoint.
	Gatherer prometheus.Gatherer
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
//
// /realtime sits outside the request timeout and the bearer middleware: the
// connection is long-lived and authenticates inside its own handshake.
func NewServer(ctx context.Context, cfg *config.MockAPIConfig, log *slog.Logger, verifier middleware.TokenVerifier, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(middleware.RateLimit(ctx, constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))

	// # Realtime
	r.Handle("/realtime", h.Realtime)

	r.Group(func(rest chi.Router) {
		rest.Use(chimw.Timeout(constants.GlobalRequestTimeout))
		rest.Use(middleware.Authenticate(verifier))
		rest.Use(chimw.CleanPath)

		// # Infrastructure Endpoints
		rest.Get("/health", h.Liveness)
		rest.Get("/ready", h.Readiness)
		if h.Gatherer != nil {
			rest.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
		}

		// # Application API
		rest.Route("/api", func(api chi.Router) {
			api.Mount("/auth", h.Auth.Routes())
			api.Mount("/leads", h.Leads.Routes())
			api.Mount("/dashboard", h.Leads.DashboardRoutes())
		})
	})

	return &Server{
		router: r,
		hub:    h.Realtime,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler returns the root handler, for tests that serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown says goodbye to realtime clients, then drains in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			s.log.Warn("hub_shutdown_incomplete", slog.Any("error", err))
		}
	}
	return s.httpServer.Shutdown(ctx)
}
