package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/syllabus/internal/api/middleware"
	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/judge"
)

// ErrQueueDisabled is returned by job endpoints when async grading is off.
var ErrQueueDisabled = errors.New("async grading is disabled")

// APIError is the body of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// NewAPIError creates a new API error
func NewAPIError(code string, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// WithDetails attaches a machine-readable payload, e.g. the fallback lesson.
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// WithCause records the underlying error for logs. It is never serialized.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

// ErrLockedWith reports a lesson the learner may not open yet.
func ErrLockedWith(message string) *APIError {
	return NewAPIError("LESSON_LOCKED", message)
}

// ErrorResponse is the JSON structure for error responses
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// WriteError logs apiErr (warn for 4xx, error for 5xx) and writes it.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *APIError) {
	attrs := []any{
		"code", apiErr.Code,
		"message", apiErr.Message,
		"status", statusCode,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetRequestID(r.Context()),
	}
	if apiErr.cause != nil {
		attrs = append(attrs, "cause", apiErr.cause.Error())
	}

	level := slog.LevelWarn
	if statusCode >= 500 {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "api error", attrs...)

	WriteJSON(w, statusCode, ErrorResponse{Error: apiErr})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, NewAPIError("BAD_REQUEST", message))
}

func NotFound(w http.ResponseWriter, r *http.Request, resource string) {
	WriteError(w, r, http.StatusNotFound, NewAPIError("NOT_FOUND", resource+" not found"))
}

func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusUnauthorized, NewAPIError("UNAUTHORIZED", message))
}

// errorMapping routes a service error to a response. A mapping with an empty
// message reuses the error text.
type errorMapping struct {
	match   func(error) bool
	status  int
	code    string
	message string
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func isJudgeFailure(err error) bool {
	var httpErr *judge.HTTPError
	return errors.Is(err, judge.ErrTransport) || errors.As(err, &httpErr)
}

// serviceErrors is checked in order; the first match wins.
var serviceErrors = []errorMapping{
	{is(domain.ErrInvalidInput), http.StatusBadRequest, "BAD_REQUEST", ""},
	{is(domain.ErrCourseNotFound), http.StatusNotFound, "NOT_FOUND", "course not found"},
	{is(domain.ErrLessonNotFound), http.StatusNotFound, "NOT_FOUND", "lesson not found"},
	{is(domain.ErrAssignmentNotFound), http.StatusNotFound, "NOT_FOUND", "assignment not found"},
	{is(domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND", "resource not found"},
	{is(domain.ErrLessonLocked), http.StatusForbidden, "LESSON_LOCKED", "lesson is locked"},
	{is(ErrQueueDisabled), http.StatusServiceUnavailable, "QUEUE_DISABLED", ""},
	{is(judge.ErrRateLimited), http.StatusServiceUnavailable, "JUDGE_BUSY", "code judge is busy, try again"},
	{is(context.DeadlineExceeded), http.StatusGatewayTimeout, "TIMEOUT", "request timed out"},
	{isJudgeFailure, http.StatusBadGateway, "JUDGE_UNAVAILABLE", "code judge is unavailable"},
}

// WriteServiceError maps service and store errors onto HTTP statuses.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if !m.match(err) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		WriteError(w, r, m.status, NewAPIError(m.code, msg).WithCause(err))
		return
	}
	WriteError(w, r, http.StatusInternalServerError, NewAPIError("INTERNAL_ERROR", "internal error").WithCause(err))
}
