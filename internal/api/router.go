package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/syllabus/internal/api/middleware"
	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/grading"
	"github.com/felixgeelhaar/syllabus/internal/metrics"
	"github.com/felixgeelhaar/syllabus/internal/progress"
)

// Services holds the dependencies served over HTTP.
type Services struct {
	Engine      *progress.Engine
	Recorder    *progress.Recorder
	Grader      *grading.Grader
	Assignments domain.AssignmentReader

	// Jobs and Results are nil when async grading is disabled.
	Jobs    JobPublisher
	Results ResultLookup

	// Metrics is optional; nil disables /metrics.
	Metrics *metrics.Metrics

	// Ready reports whether storage (and the queue, when enabled) is reachable.
	Ready func(ctx context.Context) error
}

// RouterConfig tunes the middleware chain.
type RouterConfig struct {
	RequestTimeout     time.Duration
	RateLimitPerMinute int // 0 disables rate limiting
	AllowedOrigins     []string
}

// Router wraps the HTTP multiplexer with middleware and handlers
type Router struct {
	mux      *http.ServeMux
	svc      Services
	progress *ProgressHandler
	grading  *GradingHandler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(svc Services, cfg RouterConfig) http.Handler {
	r := &Router{
		mux:      http.NewServeMux(),
		svc:      svc,
		progress: NewProgressHandler(svc.Engine, svc.Recorder, svc.Assignments),
		grading:  NewGradingHandler(svc.Grader, svc.Assignments, svc.Engine, svc.Jobs, svc.Results),
	}

	r.registerRoutes(cfg)
	return r.buildMiddlewareChain(r.mux, cfg)
}

func (r *Router) registerRoutes(cfg RouterConfig) {
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("GET /ready", r.handleReady)
	if r.svc.Metrics != nil {
		r.mux.Handle("GET /metrics", r.svc.Metrics.Handler())
	}

	r.mux.HandleFunc("GET /api/v1/languages", r.grading.Languages)

	// Progression
	r.mux.HandleFunc("GET /api/v1/courses/{courseID}/progress", r.progress.Summary)
	r.mux.HandleFunc("GET /api/v1/courses/{courseID}/lessons/{lessonID}", r.progress.Lesson)
	r.mux.HandleFunc("POST /api/v1/courses/{courseID}/lessons/{lessonID}/complete", r.progress.Complete)

	// Grading calls the judge, so it gets the stricter limiter
	judged := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.RateLimitPerMinute > 0 {
		limit := middleware.RateLimit(middleware.GradingRateLimitConfig(max(1, cfg.RateLimitPerMinute/6)))
		judged = func(h http.HandlerFunc) http.Handler { return limit(h) }
	}
	r.mux.Handle("POST /api/v1/assignments/{assignmentID}/run", judged(r.grading.Run))
	r.mux.Handle("POST /api/v1/assignments/{assignmentID}/submit", judged(r.grading.Submit))
	r.mux.Handle("POST /api/v1/assignments/{assignmentID}/jobs", judged(r.grading.EnqueueJob))
	r.mux.HandleFunc("GET /api/v1/jobs/{jobID}", r.grading.Job)
}

func (r *Router) buildMiddlewareChain(handler http.Handler, cfg RouterConfig) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	if r.svc.Metrics != nil {
		handler = r.svc.Metrics.Middleware(handler)
	}
	if cfg.RequestTimeout > 0 {
		handler = middleware.Timeout(cfg.RequestTimeout)(handler)
	}
	handler = middleware.Recovery(handler)
	handler = middleware.Logger(handler)

	if cfg.RateLimitPerMinute > 0 {
		limit := middleware.DefaultRateLimitConfig()
		limit.RequestsPerMinute = cfg.RateLimitPerMinute
		handler = middleware.RateLimit(limit)(handler)
	}

	handler = middleware.Identity(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)

	return handler
}

// Health check handlers
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.svc.Ready != nil {
		if err := r.svc.Ready(req.Context()); err != nil {
			slog.Error("readiness check failed",
				"error", err,
				"request_id", middleware.GetRequestID(req.Context()),
			)
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
