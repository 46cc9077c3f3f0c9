package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ObserveJudge(t *testing.T) {
	m := New(nil)

	m.ObserveJudge(71, "Accepted", 200*time.Millisecond, nil)
	m.ObserveJudge(71, "Accepted", 100*time.Millisecond, nil)
	m.ObserveJudge(62, "", time.Second, errors.New("connection refused"))

	if got := testutil.ToFloat64(m.JudgeSubmissions.WithLabelValues("71", "Accepted")); got != 2 {
		t.Errorf("submissions{71,Accepted} = %v; want 2", got)
	}
	if got := testutil.ToFloat64(m.JudgeErrors.WithLabelValues("62")); got != 1 {
		t.Errorf("errors{62} = %v; want 1", got)
	}
}

func TestMetrics_Middleware(t *testing.T) {
	m := New(nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := m.Middleware(mux)

	for _, path := range []string{"/things/1", "/things/2"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "GET /things/{id}", "418"))
	if got != 2 {
		t.Errorf("requests{GET /things/{id},418} = %v; want 2", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.ObserveVerdict("simple", "passed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "syllabus_grading_verdicts_total") {
		t.Error("metrics output missing syllabus_grading_verdicts_total")
	}
}

func TestMetrics_ObserveCompletion(t *testing.T) {
	m := New(nil)
	m.ObserveCompletion()
	m.ObserveCompletion()

	if got := testutil.ToFloat64(m.LessonCompletions); got != 2 {
		t.Errorf("completions = %v; want 2", got)
	}
}
