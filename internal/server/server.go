// Package server exposes the dashboard API and the static front-end over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/naka-gawa/commit-board/internal/cache"
	"github.com/naka-gawa/commit-board/internal/config"
	"github.com/naka-gawa/commit-board/internal/rotator"
)

// TeamSource yields the (possibly cached) team list.
type TeamSource interface {
	Get(ctx context.Context) (cache.Result, error)
}

// InfoSource yields the currently selected informational file.
type InfoSource interface {
	Select() (rotator.Content, error)
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	logger *zap.Logger

	teams          TeamSource
	info           InfoSource
	infoConfigName string

	host string
	port int
}

// Option configures a Server.
type Option func(*Server)

// WithInfoConfigName sets the config file name mentioned in missing-file responses.
func WithInfoConfigName(name string) Option {
	return func(s *Server) { s.infoConfigName = name }
}

// New creates a new HTTP server instance
func New(cfg config.ServerConfig, teams TeamSource, info InfoSource, logger *zap.Logger, opts ...Option) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		router:         r,
		logger:         logger,
		teams:          teams,
		info:           info,
		infoConfigName: "config.json",
		host:           cfg.Host,
		port:           cfg.Port,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes(cfg.StaticDir)
	return s
}

func (s *Server) registerRoutes(staticDir string) {
	s.router.Get("/api/teams", s.handleTeams)
	s.router.Get("/api/teams/summary", s.handleSummary)
	s.router.Get("/api/info", s.handleInfo)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	if staticDir != "" {
		s.router.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger logs one line per request with its id, status and duration.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Debug("HTTP request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
