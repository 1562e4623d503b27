package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/ihsan/pkg/cache"
	"github.com/dmitrymomot/ihsan/pkg/health"
	"github.com/dmitrymomot/ihsan/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithChecks sets the readiness checks served on /health/ready.
func WithChecks(checks health.Checks) Option {
	return func(s *Server) {
		s.checks = checks
	}
}

// WithLogger sets the request and error logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithNamespace sets the Prometheus namespace of the cache metrics.
// Default: "ihsan".
func WithNamespace(ns string) Option {
	return func(s *Server) {
		s.namespace = ns
	}
}

// WithRegistry uses reg instead of a private registry. The cache collector is
// registered on it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// Server exposes the cache's admin surface over HTTP.
type Server struct {
	svc       *cache.Service
	checks    health.Checks
	logger    *slog.Logger
	registry  *prometheus.Registry
	namespace string
}

// New creates a Server for svc. The cache collector and the Go runtime
// collectors are registered on the server's registry.
func New(svc *cache.Service, opts ...Option) (*Server, error) {
	s := &Server{
		svc:       svc,
		logger:    logger.NewNope(),
		namespace: "ihsan",
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if err := s.registry.Register(cache.NewCollector(svc, s.namespace)); err != nil {
		return nil, err
	}

	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(correlationID, s.recoverer, s.requestLogger)

	live := health.LivenessHandler()
	ready := health.ReadinessHandler(s.checks,
		health.WithTimeout(3*time.Second),
		health.WithLogger(s.logger),
	)
	r.Get("/health/live", live)
	r.Head("/health/live", live)
	r.Get("/health/ready", ready)
	r.Head("/health/ready", ready)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/keys", s.handleKeys)
		r.Get("/entries/{key}", s.handleEntry)
		r.Delete("/entries/{key}", s.handleDeleteEntry)
		r.Post("/invalidate", s.handleInvalidate)
		r.Post("/clear", s.handleClear)
		r.Post("/metrics/reset", s.handleResetMetrics)
	})

	return r
}
