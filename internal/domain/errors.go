package domain

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Domain Errors
// Repositories and services return these (wrapped) so callers can tell a
// missing resource or a rejected request apart from an infrastructure failure.
// -----------------------------------------------------------------------------

// Course errors
var (
	ErrCourseNotFound = errors.New("course not found")
	ErrLessonNotFound = errors.New("lesson not found")
	ErrLessonLocked   = errors.New("lesson locked")
)

// Assignment errors
var (
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Validation errors
var (
	ErrEmptyCode      = fmt.Errorf("%w: code is required", ErrInvalidInput)
	ErrMissingHarness = fmt.Errorf("%w: test case has no harness file", ErrInvalidInput)
)
