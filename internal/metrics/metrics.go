// Package metrics exposes Prometheus collectors for judge calls, grading
// verdicts and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors.
type Metrics struct {
	JudgeSubmissions  *prometheus.CounterVec
	JudgeDuration     *prometheus.HistogramVec
	JudgeErrors       *prometheus.CounterVec
	GradingVerdicts   *prometheus.CounterVec
	LessonCompletions prometheus.Counter
	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		JudgeSubmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syllabus_judge_submissions_total",
				Help: "Judge submissions by language id and terminal status",
			},
			[]string{"language_id", "status"},
		),
		JudgeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "syllabus_judge_duration_seconds",
				Help:    "Wall time of judge submissions",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"language_id"},
		),
		JudgeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syllabus_judge_errors_total",
				Help: "Judge submissions that failed to produce a result",
			},
			[]string{"language_id"},
		),
		GradingVerdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syllabus_grading_verdicts_total",
				Help: "Grading outcomes by mode",
			},
			[]string{"mode", "outcome"},
		),
		LessonCompletions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "syllabus_lesson_completions_total",
				Help: "Newly recorded lesson completions",
			},
		),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syllabus_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "syllabus_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "route"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.JudgeSubmissions,
		m.JudgeDuration,
		m.JudgeErrors,
		m.GradingVerdicts,
		m.LessonCompletions,
		m.RequestCounter,
		m.RequestDuration,
	)
	return m
}

// ObserveJudge records one judge call.
func (m *Metrics) ObserveJudge(languageID int, status string, d time.Duration, err error) {
	lang := strconv.Itoa(languageID)
	m.JudgeDuration.WithLabelValues(lang).Observe(d.Seconds())
	if err != nil {
		m.JudgeErrors.WithLabelValues(lang).Inc()
		return
	}
	m.JudgeSubmissions.WithLabelValues(lang, status).Inc()
}

// ObserveCompletion counts a newly recorded lesson completion.
func (m *Metrics) ObserveCompletion() {
	m.LessonCompletions.Inc()
}

// ObserveVerdict records a grading outcome: "passed", "failed" or "error".
func (m *Metrics) ObserveVerdict(mode, outcome string) {
	m.GradingVerdicts.WithLabelValues(mode, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests by method, route pattern and status.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
