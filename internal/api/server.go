// Package api serves the GridLink resource tree over HTTP.
//
// Every path other than /health and /metrics is an href: GET resolves it
// through the directory, PUT replaces the resource stored there and POST
// creates controls and mirror metering resources. The server shares the
// New / Start / Close lifecycle of the infrastructure clients:
//
//	server, err := api.New(deps)
//	if err := server.Start(ctx); err != nil { ... }
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/gridlink-core/internal/directory"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/config"
	"github.com/nerrad567/gridlink-core/internal/infrastructure/logging"
)

// shutdownGrace bounds how long Close waits for in-flight requests.
const shutdownGrace = 10 * time.Second

// HealthReporter reports whether durable storage is keeping up. The
// persistence hub implements it.
type HealthReporter interface {
	Degraded() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Directory *directory.Directory
	Health    HealthReporter // optional
	Version   string
}

// Server is the HTTP front end of a Directory.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	dir     *directory.Directory
	health  HealthReporter
	version string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	serveErr error
}

// New checks deps and returns an unstarted server.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Directory == nil:
		return nil, fmt.Errorf("directory is required")
	}
	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		dir:     deps.Directory,
		health:  deps.Health,
		version: deps.Version,
	}, nil
}

// Start binds the listen address and serves in the background. Bind
// failures (port in use, bad host) are returned here rather than logged
// from the serving goroutine.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadDuration(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadDuration(),
		WriteTimeout:      s.cfg.Timeouts.WriteDuration(),
		IdleTimeout:       s.cfg.Timeouts.IdleDuration(),
	}

	s.mu.Lock()
	s.server, s.listener = srv, ln
	s.mu.Unlock()

	s.logger.Info("API server listening", "address", ln.Addr().String(), "tls", s.cfg.TLS.Enabled)
	go s.serve(srv, ln)
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	var err error
	if s.cfg.TLS.Enabled {
		err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		err = srv.Serve(ln)
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	s.logger.Error("API server stopped", "error", err)
	s.mu.Lock()
	s.serveErr = err
	s.mu.Unlock()
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops accepting connections and waits up to shutdownGrace for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck fails when the server was never started or its serve loop
// has exited with an error.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.server == nil:
		return fmt.Errorf("api server not started")
	case s.serveErr != nil:
		return fmt.Errorf("api server stopped: %w", s.serveErr)
	}
	return nil
}
