package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/grading"
	"github.com/felixgeelhaar/syllabus/internal/judge"
	"github.com/felixgeelhaar/syllabus/internal/progress"
	"github.com/felixgeelhaar/syllabus/internal/queue"
	"github.com/google/uuid"
)

const maxCodeBytes = 256 << 10

// JobPublisher enqueues async grading jobs.
type JobPublisher interface {
	PublishJob(ctx context.Context, job *queue.GradeJob) error
}

// ResultLookup returns finished async jobs.
type ResultLookup interface {
	Result(jobID string) (*queue.GradeResult, bool)
}

// GradingHandler serves run, submit and async job endpoints.
type GradingHandler struct {
	grader      *grading.Grader
	assignments domain.AssignmentReader
	engine      *progress.Engine
	jobs        JobPublisher
	results     ResultLookup
}

// NewGradingHandler creates a grading handler. jobs and results may be nil
// when the queue is disabled.
func NewGradingHandler(grader *grading.Grader, assignments domain.AssignmentReader, engine *progress.Engine, jobs JobPublisher, results ResultLookup) *GradingHandler {
	return &GradingHandler{
		grader:      grader,
		assignments: assignments,
		engine:      engine,
		jobs:        jobs,
		results:     results,
	}
}

// RunRequest is the body of a run.
type RunRequest struct {
	Code  string `json:"code"`
	Stdin string `json:"stdin"`
}

// SubmitRequest is the body of a submission.
type SubmitRequest struct {
	Code string `json:"code"`
}

// JobRequest is the body of an async job.
type JobRequest struct {
	Kind  queue.JobKind `json:"kind"`
	Code  string        `json:"code"`
	Stdin string        `json:"stdin"`
}

// JobResponse acknowledges an enqueued job.
type JobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

// LanguageResponse lists judge languages.
type LanguageResponse struct {
	Languages []judge.Language `json:"languages"`
}

// Run executes code once with optional stdin.
func (h *GradingHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	_, a, ok := h.openAssignment(w, r, &req)
	if !ok {
		return
	}

	res, err := h.grader.Run(r.Context(), a, req.Code, req.Stdin)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Submit grades code against the assignment's tests.
func (h *GradingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	_, a, ok := h.openAssignment(w, r, &req)
	if !ok {
		return
	}

	v, err := h.grader.Grade(r.Context(), a, req.Code)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

// EnqueueJob publishes an async grading job and answers 202 with its id.
func (h *GradingHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		WriteServiceError(w, r, ErrQueueDisabled)
		return
	}

	var req JobRequest
	userID, a, ok := h.openAssignment(w, r, &req)
	if !ok {
		return
	}

	kind := req.Kind
	switch kind {
	case "":
		kind = queue.KindGrade
	case queue.KindGrade, queue.KindRun:
	default:
		BadRequest(w, r, fmt.Sprintf("unknown job kind %q", req.Kind))
		return
	}
	if req.Code == "" {
		WriteServiceError(w, r, domain.ErrEmptyCode)
		return
	}

	job := queue.NewGradeJob(userID, a.ID, kind, req.Code, req.Stdin)
	if err := h.jobs.PublishJob(r.Context(), job); err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, NewAPIError("QUEUE_UNAVAILABLE", "could not enqueue job").WithCause(err))
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+job.ID.String())
	WriteJSON(w, http.StatusAccepted, JobResponse{JobID: job.ID, Status: "queued"})
}

// Job returns a finished job. Unknown, unfinished and other users' jobs all
// answer 404.
func (h *GradingHandler) Job(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		WriteServiceError(w, r, ErrQueueDisabled)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	jobID, err := uuid.Parse(r.PathValue("jobID"))
	if err != nil {
		BadRequest(w, r, "invalid jobID")
		return
	}

	res, found := h.results.Result(jobID.String())
	if !found || res.UserID != userID {
		NotFound(w, r, "job result")
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// Languages lists the languages the judge accepts.
func (h *GradingHandler) Languages(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, LanguageResponse{Languages: judge.Languages()})
}

// openAssignment authenticates, decodes body, loads the assignment and checks
// that its lesson is open to the learner.
func (h *GradingHandler) openAssignment(w http.ResponseWriter, r *http.Request, body any) (uuid.UUID, *domain.Assignment, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return uuid.Nil, nil, false
	}
	assignmentID, ok := pathID(w, r, "assignmentID")
	if !ok {
		return uuid.Nil, nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCodeBytes)
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		BadRequest(w, r, "invalid request body")
		return uuid.Nil, nil, false
	}

	a, err := h.assignments.Assignment(r.Context(), assignmentID)
	if err != nil {
		WriteServiceError(w, r, err)
		return uuid.Nil, nil, false
	}

	open, err := h.engine.CanAccess(r.Context(), userID, a.LessonID)
	if err != nil {
		WriteServiceError(w, r, err)
		return uuid.Nil, nil, false
	}
	if !open {
		WriteError(w, r, http.StatusForbidden, ErrLockedWith("assignment belongs to a locked lesson").WithCause(domain.ErrLessonLocked))
		return uuid.Nil, nil, false
	}
	return userID, a, true
}
