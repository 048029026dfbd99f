package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/datahub/pkg/hub"
)

const (
	// writeGrace is added to the longest wait when deriving the server's
	// WriteTimeout so a long poll is never cut off by the server itself.
	writeGrace = 10 * time.Second

	defaultMaxBody = 16 << 20
)

// Pinger is satisfied by the events client; the health check reports its state.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	DefaultWait   time.Duration // used when a read has no timeout parameter
	MaxWait       time.Duration // longer timeouts are clamped
	MaxValueBytes int           // bounds request bodies; 0 = defaultMaxBody
	Events        Pinger        // optional, reported by /healthz
	Logger        *slog.Logger
}

// Server exposes a hub over HTTP/JSON.
type Server struct {
	hub    *hub.Hub
	opts   Options
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a server for h.
func NewServer(h *hub.Hub, opts Options) *Server {
	if opts.MaxWait <= 0 {
		opts.MaxWait = 10 * time.Minute
	}
	if opts.DefaultWait < 0 || opts.DefaultWait > opts.MaxWait {
		opts.DefaultWait = opts.MaxWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    h,
		opts:   opts,
		logger: logger,
	}
}

// Handler returns the routed handler with request-ID and access-log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthCheckHandler)
	mux.HandleFunc("GET /v1/stats", s.statsHandler)
	mux.HandleFunc("GET /v1/vars", s.listHandler)
	mux.HandleFunc("GET /v1/vars/{key}", s.readHandler)
	mux.HandleFunc("PUT /v1/vars/{key}", s.writeHandler)
	mux.HandleFunc("POST /v1/vars/{key}", s.writeHandler)

	return s.withRequestID(s.withAccessLog(mux))
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully. Suspended reads are released by closing the hub, which the
// caller does alongside cancelling ctx.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.opts.MaxWait + writeGrace,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(l)
	}()

	s.logger.Info("http server listening", "addr", l.Addr().String())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) maxBody() int64 {
	if s.opts.MaxValueBytes <= 0 {
		return defaultMaxBody
	}
	// base64 expansion plus JSON framing
	return int64(s.opts.MaxValueBytes)*4/3 + 4096
}
