package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"zblog/internal/models"
	"zblog/internal/orchestrator"
)

// ActivityReader lists the recorded activity of a post
type ActivityReader interface {
	Activities(ctx context.Context, postID string, limit, offset int) ([]*models.PostActivity, error)
}

// HealthCheck is a named dependency probe reported by /health
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Options configures optional parts of the server
type Options struct {
	// DebugEndpoints enables GET|DELETE /debug/content
	DebugEndpoints bool
	HealthChecks   []HealthCheck
}

// Server represents the HTTP API server
// Provides endpoints for Prometheus metrics, health checks, and the post API
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	orch       *orchestrator.Orchestrator
	activity   ActivityReader
	opts       Options
}

// NewServer creates a new API server instance
func NewServer(port int, orch *orchestrator.Orchestrator, activity ActivityReader, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:      mux,
		orch:     orch,
		activity: activity,
		opts:     opts,
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // decrypt round trips can be slow
		IdleTimeout:  60 * time.Second,
	}

	// Register all HTTP routes
	s.registerRoutes()

	return s
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.handleMetrics())

	// Post endpoints
	s.mux.HandleFunc("/posts", s.handlePosts)
	s.mux.HandleFunc("/posts/", s.handlePostRoutes)

	// Content endpoints
	s.mux.HandleFunc("/content/", s.handleContentRoutes)

	if s.opts.DebugEndpoints {
		s.mux.HandleFunc("/debug/content", s.handleDebugContent)
	}
}

// Start binds the port and serves in a goroutine.
// A bind failure is returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("API server starting",
		"addr", ln.Addr().String(),
		"contract", s.orch.ContractAddress(),
		"debug_endpoints", s.opts.DebugEndpoints,
	)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server
// Waits for active connections to close or context to timeout
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}
