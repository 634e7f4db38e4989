// Package httpapi is the Brain's admission and observability surface,
// grounded on internal/server/server.go's chi router + CORS middleware +
// one register*Routes method per concern, trimmed of every display/
// deployment/broker concept carried elsewhere in this codebase for its
// own domain.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/titan-brain/internal/allocation"
	"github.com/aristath/titan-brain/internal/arbitrator"
	"github.com/aristath/titan-brain/internal/breaker"
	"github.com/aristath/titan-brain/internal/bus"
	"github.com/aristath/titan-brain/internal/configregistry"
	"github.com/aristath/titan-brain/internal/equity"
	"github.com/aristath/titan-brain/internal/metrics"
	"github.com/aristath/titan-brain/internal/treasury"
)

// Config bundles every collaborator the HTTP surface routes to.
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	Arbitrator  *arbitrator.Arbitrator
	Registry    *configregistry.Registry
	Allocation  *allocation.Engine
	Treasury    *treasury.Manager
	Breaker     *breaker.Breaker
	Bus         *bus.Bus
	Metrics     *metrics.Registry
	Equity      *equity.Tracker
	StartedAt   time.Time
}

// Server is the Brain's HTTP API.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	arb        *arbitrator.Arbitrator
	registry   *configregistry.Registry
	allocation *allocation.Engine
	treasury   *treasury.Manager
	breaker    *breaker.Breaker
	bus        *bus.Bus
	metrics    *metrics.Registry
	equity     *equity.Tracker
	startedAt  time.Time
}

// New builds the router and binds it to an *http.Server.
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "httpapi").Logger(),
		arb:        cfg.Arbitrator,
		registry:   cfg.Registry,
		allocation: cfg.Allocation,
		treasury:   cfg.Treasury,
		breaker:    cfg.Breaker,
		bus:        cfg.Bus,
		metrics:    cfg.Metrics,
		equity:     cfg.Equity,
		startedAt:  cfg.StartedAt,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.Port != 0 {
		s.server.Addr = fmt.Sprintf(":%d", cfg.Port)
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("handled request")
	})
}

// Handler exposes the router for use with an external http.Server or test
// harness (httptest.NewServer).
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server, blocking until it returns an error
// (including http.ErrServerClosed on graceful shutdown).
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http api listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight
// requests to finish until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
