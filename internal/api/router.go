package api

import (
	"net/http"

	"github.com/Swind/go-pool-registry/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the API server.
type Options struct {
	// CORSOrigins defaults to all origins.
	CORSOrigins []string

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prom.Gatherer

	// RequestLogging enables chi's request logger.
	RequestLogging bool
}

// Server represents the API server
type Server struct {
	router   chi.Router
	registry *core.Registry
	opts     Options
}

// NewServer creates a new API server over registry.
func NewServer(registry *core.Registry, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{
		router:   chi.NewRouter(),
		registry: registry,
		opts:     opts,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if s.opts.RequestLogging {
		s.router.Use(middleware.Logger)
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	s.router.Get("/health", s.healthCheck)

	if s.opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// API v1
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/pools", func(r chi.Router) {
			r.Get("/", s.listPools)
			r.Post("/", s.createPool)
			r.Get("/{name}", s.getPool)
			r.Delete("/{name}", s.shutdownPool)
			r.Get("/{name}/tasks", s.recentTasks)
		})
	})
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}
