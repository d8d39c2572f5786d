// Package server provides the HTTP trigger surface for the job-alert pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/smartapply/internal/config"
	"github.com/jonathan/smartapply/internal/db"
	"github.com/jonathan/smartapply/internal/observability"
	"github.com/jonathan/smartapply/internal/pipeline"
	"github.com/jonathan/smartapply/internal/server/middleware"
	"github.com/jonathan/smartapply/internal/server/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Runner executes one pipeline run. *pipeline.Orchestrator implements it.
type Runner interface {
	RunPipeline(ctx context.Context, opts pipeline.RunOptions) (*pipeline.Summary, error)
}

// Store reads run history and stored jobs. *db.DB implements it.
type Store interface {
	GetRun(ctx context.Context, runID uuid.UUID) (*db.PipelineRun, error)
	ListRuns(ctx context.Context, limit int) ([]db.PipelineRun, error)
	ListRecentJobs(ctx context.Context, source string, limit int) ([]db.Job, error)
	Ping(ctx context.Context) error
}

// StateReporter exposes a component state for GET /health.
// *embedding.Breaker and *embedding.Disabled implement it.
type StateReporter interface {
	State() string
}

// Deps are the collaborators the server needs.
type Deps struct {
	Runner Runner
	Store  Store
	// Embedding is optional; when set its state is added to GET /health.
	Embedding StateReporter
	// Gatherer backs GET /metrics; defaults to the global registry.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	runner      Runner
	store       Store
	embedding   StateReporter
	logger      *zap.Logger
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
}

// New creates a new server instance
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		runner:      deps.Runner,
		store:       deps.Store,
		embedding:   deps.Embedding,
		logger:      observability.OrNop(deps.Logger),
		rateLimiter: ratelimit.NewLimiter(ratelimit.FromConfig(cfg.RateLimit)),
	}
	if cfg.JWTSecret != "" {
		s.jwtService = NewJWTService(cfg.JWTSecret)
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("POST /run_pipeline", s.withAuth(http.HandlerFunc(s.handleRunPipeline)))
	mux.Handle("POST /run_pipeline/stream", s.withAuth(http.HandlerFunc(s.handleRunPipelineStream)))
	mux.Handle("GET /runs", s.withAuth(http.HandlerFunc(s.handleListRuns)))
	mux.Handle("GET /runs/{id}", s.withAuth(http.HandlerFunc(s.handleGetRun)))
	mux.Handle("GET /jobs", s.withAuth(http.HandlerFunc(s.handleListJobs)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // pipeline runs can take many minutes
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withAuth requires a bearer token when a JWT secret is configured.
func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.jwtService == nil {
		return next
	}
	return middleware.AuthMiddleware(s.jwtService.Subject)(next)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses working behind the logging middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// handleHealth reports whether the database is reachable, plus the
// embedding circuit state when known. An open circuit does not fail the
// check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]string{"status": "ok"}
	if s.embedding != nil {
		body["embedding"] = s.embedding.State()
	}
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		body["status"] = "unavailable"
		s.jsonResponse(w, http.StatusServiceUnavailable, body)
		return
	}
	s.jsonResponse(w, http.StatusOK, body)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn("rate limit exceeded",
		zap.String("client", s.extractClientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
