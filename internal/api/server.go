// Package api provides the HTTP server and routing.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/awagdata/objectstore/internal/api/handlers"
	"github.com/awagdata/objectstore/internal/auth"
	"github.com/awagdata/objectstore/internal/config"
	"github.com/awagdata/objectstore/internal/engine"
	"github.com/awagdata/objectstore/internal/metrics"
)

// Server represents the HTTP server.
type Server struct {
	config  *config.Config
	engine  *engine.Engine
	router  chi.Router
	server  *http.Server
	logger  *slog.Logger
	metrics *metrics.Metrics
	build   handlers.Config
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics installs a shared Metrics instance, letting the storage
// layer and the server report into one registry. Without it the server
// creates its own.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithBuildInfo sets the build metadata reported by the identity endpoint.
func WithBuildInfo(version, commit, buildTime string) Option {
	return func(s *Server) {
		s.build = handlers.Config{Version: version, Commit: commit, BuildTime: buildTime}
	}
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, eng *engine.Engine, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		config: cfg,
		engine: eng,
		logger: logger,
		build:  handlers.Config{Version: "dev"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	s.setupRouter()
	return s
}

// Metrics returns the metrics instance for recording custom metrics.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// setupRouter configures the HTTP router.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := s.config.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "x-client-id", "x-client-token"},
		MaxAge:         300,
	}))

	// Create handlers
	h := handlers.NewWithConfig(s.engine, s.logger, s.build)

	// Service identity and liveness, outside the authenticated prefix
	r.Get("/", h.Index)
	r.Get("/status", h.Status)

	// Metrics endpoint
	if s.config.Metrics.Enabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			s.metrics.Handler().ServeHTTP(w, r)
		})
	}

	// API documentation
	if s.config.Server.DocsEnabled {
		r.Get("/docs", handleSwaggerUI)
		r.Get("/openapi.yaml", handleOpenAPISpec)
	}

	authenticator := auth.NewAuthenticator(s.config.Auth.Clients, s.metrics)

	r.Route("/svc/v1", func(r chi.Router) {
		r.Use(authenticator.Middleware)

		// Mappings
		r.Get("/mappings", h.Mappings)

		// Named operation aliases
		r.Post("/store/{ns}", h.Store)
		r.Post("/store/{ns}/{object_id}", h.Store)
		r.Get("/retrieve/{ns}/{object_id}", h.Retrieve)
		r.Get("/retrieve/{ns}/{object_id}/{prop}", h.Retrieve)
		r.Delete("/delete/{ns}/{object_id}", h.Delete)
		r.Get("/query/{ns}", h.Query)
		r.Get("/query/{ns}/{object_id}", h.Revisions)
		r.Delete("/clear/{ns}", h.Clear)

		// Tags
		r.Get("/tags/{ns}/{object_id}", h.GetTags)
		r.Patch("/tags/{ns}/{object_id}", h.AddTags)
		r.Put("/tags/{ns}/{object_id}", h.ReplaceTags)
		r.Delete("/tags/{ns}/{object_id}", h.RemoveTags)
		r.Get("/tags/get/{ns}/{object_id}", h.GetTags)
		r.Post("/tags/add/{ns}/{object_id}", h.AddTags)
		r.Post("/tags/remove/{ns}/{object_id}", h.RemoveTags)

		// Bare namespace routes
		r.Post("/{ns}", h.Store)
		r.Post("/{ns}/{object_id}", h.Store)
		r.Get("/{ns}", h.Query)
		r.Delete("/{ns}", h.Clear)
		r.Get("/{ns}/{object_id}", h.Retrieve)
		// The static segment outranks the {prop} wildcard, so revision
		// listings get the query envelope rather than a retrieve.
		r.Get("/{ns}/{object_id}/revisions", h.Revisions)
		r.Get("/{ns}/{object_id}/{prop}", h.Retrieve)
		r.Delete("/{ns}/{object_id}", h.Delete)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote", r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
	}

	s.logger.Info("starting server", slog.String("address", addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the HTTP router for testing.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Address returns the server address.
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s", s.config.Address())
}
