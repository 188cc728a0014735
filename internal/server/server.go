// Package server exposes the resolver over JSON/HTTP and a WebSocket stream
// for type-ahead clients.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/scrypster/resolver/internal/config"
	"github.com/scrypster/resolver/internal/engine"
	"github.com/scrypster/resolver/internal/logger"
	"github.com/scrypster/resolver/internal/storage/guard"
)

// HealthChecker reports the state of the storage guard.
// *guard.Store implements it.
type HealthChecker interface {
	State() string
	Metrics() guard.Metrics
	Ping(ctx context.Context) error
}

// Server routes requests to a Resolver.
type Server struct {
	cfg      *config.Config
	resolver *engine.Resolver
	health   HealthChecker
	log      *zap.SugaredLogger

	// base is cancelled when the server shuts down; it bounds WebSocket
	// sessions, which outlive the HTTP handler contract.
	base context.Context
}

// New builds a Server. health may be nil, in which case /api/health only
// reports that the process is up.
func New(ctx context.Context, cfg *config.Config, resolver *engine.Resolver, health HealthChecker) *Server {
	return &Server{
		cfg:      cfg,
		resolver: resolver,
		health:   health,
		log:      logger.Named("server"),
		base:     ctx,
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/resolve", s.handleResolve)
	mux.HandleFunc("POST /api/resolve/batch", s.handleResolveBatch)
	mux.HandleFunc("POST /api/resolve/semantic", s.handleResolveSemantic)
	mux.HandleFunc("POST /api/resolve/semantic/batch", s.handleResolveSemanticBatch)
	mux.HandleFunc("POST /api/glossary/suggest", s.handleSuggest)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /ws/resolve", s.handleWebSocket)

	limiter := NewRateLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst)

	// Outermost first: request id, access log, security headers, rate limit.
	var handler http.Handler = mux
	handler = RateLimitMiddleware(handler, limiter)
	handler = securityHeadersMiddleware(handler)
	handler = accessLogMiddleware(handler, s.log)
	handler = requestIDMiddleware(handler)
	return handler
}

// Start listens on the configured address and serves in the background
// until ctx is cancelled. It returns the actual address, which matters when
// Port is 0.
func Start(ctx context.Context, cfg *config.Config, resolver *engine.Resolver, health HealthChecker) (string, error) {
	s := New(ctx, cfg, resolver, health)
	listener, err := s.listen()
	if err != nil {
		return "", err
	}

	go func() {
		if err := s.serve(ctx, listener); err != nil {
			s.log.Errorw("server stopped", "error", err)
		}
	}()
	return listener.Addr().String(), nil
}

// Run is the blocking form of Start. onListen, if set, receives the bound
// address once the listener is open. Run returns after a graceful shutdown.
func Run(ctx context.Context, cfg *config.Config, resolver *engine.Resolver, health HealthChecker, onListen func(addr string)) error {
	s := New(ctx, cfg, resolver, health)
	listener, err := s.listen()
	if err != nil {
		return err
	}
	if onListen != nil {
		onListen(listener.Addr().String())
	}
	return s.serve(ctx, listener)
}

func (s *Server) listen() (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "server: listen on %s", addr)
	}
	s.log.Infow("listening", "addr", listener.Addr().String())
	return listener, nil
}

// serve runs the HTTP server on listener until ctx is done, then shuts it
// down within Server.ShutdownTimeout.
func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server: serve")
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server: shutdown")
	}
	s.log.Infow("shut down")
	return nil
}
