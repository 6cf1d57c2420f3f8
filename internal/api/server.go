// Package api serves expert reports over a local HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/steveyegge/clewcrew/internal/coordinator"
)

// DefaultAddr keeps the API on loopback unless told otherwise.
const DefaultAddr = "127.0.0.1:9107"

// Server answers report and impact requests with a shared coordinator.
type Server struct {
	coord   *coordinator.Coordinator
	baseDir string
	logger  *zap.SugaredLogger
	metrics *Metrics
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics replaces the server's collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewServer creates a server that only analyzes projects under baseDir.
func NewServer(coord *coordinator.Coordinator, baseDir string, opts ...Option) (*Server, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving base dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("base dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base dir %s is not a directory", abs)
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, fmt.Errorf("resolving base dir: %w", err)
	}

	s := &Server{
		coord:   coord,
		baseDir: abs,
		logger:  zap.NewNop().Sugar(),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/experts", s.handleExperts)
	r.Post("/detect", s.handleDetect)
	r.Post("/report", s.handleReport)
	r.Post("/impact", s.handleImpact)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return r
}

// HTTPServer wraps Routes in an http.Server with conservative timeouts.
// Reports can take as long as the slowest expert, so writes get more room.
func (s *Server) HTTPServer(addr string) *http.Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Minute,
	}
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := s.HTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("api listening", "addr", srv.Addr, "base_dir", s.baseDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

// instrument counts requests by route pattern and logs each one.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.logger.Debugw("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// resolveRoot maps a requested project root onto the base dir. Relative
// roots are taken from the base dir; absolute roots must lie inside it.
func (s *Server) resolveRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return s.baseDir, nil
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(s.baseDir, root)
	}
	root = filepath.Clean(root)
	if !s.contains(root) {
		return "", fmt.Errorf("root %q is outside the served directory", root)
	}

	// Symlinks under the served directory must not lead out of it.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("root %q is not a directory", root)
	}
	if !s.contains(resolved) {
		return "", fmt.Errorf("root %q is outside the served directory", root)
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("root %q is not a directory", root)
	}
	return resolved, nil
}

func (s *Server) contains(p string) bool {
	rel, err := filepath.Rel(s.baseDir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
