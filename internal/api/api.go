// Package api provides the HTTP adapter for FlowMentor.
//
// It exposes the chat pipeline, the exchange log, a health check and the
// Prometheus metrics endpoint. Handlers only translate HTTP to pipeline calls.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/FlowMentor/internal/flow"
	"github.com/BTreeMap/FlowMentor/internal/store"
)

// Server defaults.
const (
	DefaultAddr         = ":5000"
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 5 * time.Minute
	DefaultIdleTimeout  = 60 * time.Second
	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout = 30 * time.Second
	// MaxRequestBodyBytes limits the size of a chat request.
	MaxRequestBodyBytes = 1 << 20
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr         string
	WriteTimeout time.Duration
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithWriteTimeout sets the HTTP write timeout. It must cover the worst-case
// provider chain: every provider timing out in turn.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Opts) { o.WriteTimeout = d }
}

// Server serves the FlowMentor HTTP API.
type Server struct {
	flow       *flow.TutorFlow
	exchanges  store.Store
	httpServer *http.Server
}

// NewServer creates a server over the given pipeline and exchange log. exchanges may be nil.
func NewServer(tf *flow.TutorFlow, exchanges store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, WriteTimeout: DefaultWriteTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{flow: tf, exchanges: exchanges}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	slog.Debug("Server.NewServer: server created", "addr", cfg.Addr, "writeTimeout", cfg.WriteTimeout, "hasStore", exchanges != nil)
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/chat", instrument("/api/chat", http.HandlerFunc(s.chatHandler)))
	mux.Handle("/api/exchanges", instrument("/api/exchanges", http.HandlerFunc(s.exchangesHandler)))
	mux.Handle("/healthz", instrument("/healthz", http.HandlerFunc(s.healthHandler)))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server.Run: FlowMentor API listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		slog.Info("Server.Run: shutting down")
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
