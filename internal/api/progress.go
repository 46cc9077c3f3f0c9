package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/felixgeelhaar/syllabus/internal/api/middleware"
	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/progress"
	"github.com/google/uuid"
)

// ProgressHandler serves lesson navigation and completion.
type ProgressHandler struct {
	engine      *progress.Engine
	recorder    *progress.Recorder
	assignments domain.AssignmentReader
}

// NewProgressHandler creates a progress handler.
func NewProgressHandler(engine *progress.Engine, recorder *progress.Recorder, assignments domain.AssignmentReader) *ProgressHandler {
	return &ProgressHandler{engine: engine, recorder: recorder, assignments: assignments}
}

// LessonResponse is an accessible lesson with its assignments.
type LessonResponse struct {
	*progress.Navigation
	Assignments []*domain.Assignment `json:"assignments"`
}

// LockedDetails tells the client where to redirect a locked learner.
type LockedDetails struct {
	LessonID int64          `json:"lesson_id"`
	Fallback *domain.Lesson `json:"fallback,omitempty"`
}

// Summary returns completion counts and the lesson to resume from.
func (h *ProgressHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "courseID")
	if !ok {
		return
	}

	sum, err := h.engine.Summary(r.Context(), userID, courseID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sum)
}

// Lesson opens a lesson. A locked lesson answers 403 with the fallback lesson
// the client should show instead.
func (h *ProgressHandler) Lesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "courseID")
	if !ok {
		return
	}
	lessonID, ok := pathID(w, r, "lessonID")
	if !ok {
		return
	}

	nav, err := h.engine.Navigate(r.Context(), userID, courseID, lessonID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if !nav.Accessible {
		WriteError(w, r, http.StatusForbidden, ErrLockedWith("complete the previous lesson first").
			WithCause(domain.ErrLessonLocked).
			WithDetails(LockedDetails{LessonID: lessonID, Fallback: nav.Fallback}))
		return
	}

	list, err := h.assignments.LessonAssignments(r.Context(), lessonID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	for _, a := range list {
		redact(a)
	}

	WriteJSON(w, http.StatusOK, LessonResponse{Navigation: nav, Assignments: list})
}

// Complete marks a lesson complete and returns the newly reachable lesson.
func (h *ProgressHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	courseID, ok := pathID(w, r, "courseID")
	if !ok {
		return
	}
	lessonID, ok := pathID(w, r, "lessonID")
	if !ok {
		return
	}

	c, err := h.recorder.Complete(r.Context(), userID, courseID, lessonID)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if c.Created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, c)
}

// redact hides the reference solution and harness sources from learners.
func redact(a *domain.Assignment) {
	a.Solution = ""
	cases := a.TestCases[:0]
	for _, tc := range a.TestCases {
		if tc.IsHarness() {
			continue
		}
		cases = append(cases, tc)
	}
	a.TestCases = cases
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		Unauthorized(w, r, "X-User-ID header with a valid user id is required")
		return uuid.Nil, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err == nil && id <= 0 {
		err = errors.New("not positive")
	}
	if err != nil {
		BadRequest(w, r, "invalid "+name)
		return 0, false
	}
	return id, true
}
