package domain

import (
	"context"

	"github.com/google/uuid"
)

// CourseReader provides the read-only course hierarchy.
type CourseReader interface {
	// Course loads a course with its chapters and lessons.
	Course(ctx context.Context, id int64) (*Course, error)
	// LessonCourseID returns the course owning a lesson.
	LessonCourseID(ctx context.Context, lessonID int64) (int64, error)
}

// CompletionStore records lesson completions.
type CompletionStore interface {
	// MarkComplete creates the record if missing. It reports whether this call
	// created it; a duplicate is a no-op, never an error.
	MarkComplete(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error)
	// CompletedLessonIDs lists the lessons of a course the user has completed.
	CompletedLessonIDs(ctx context.Context, userID uuid.UUID, courseID int64) ([]int64, error)
}

// AssignmentReader loads assignments with their test cases in storage order.
type AssignmentReader interface {
	Assignment(ctx context.Context, id int64) (*Assignment, error)
	LessonAssignments(ctx context.Context, lessonID int64) ([]*Assignment, error)
}

// CourseWriter upserts a course hierarchy by slug and fills in its ids.
type CourseWriter interface {
	SaveCourse(ctx context.Context, course *Course) error
}

// AssignmentWriter upserts an assignment by (lesson, slug) and replaces its
// test cases.
type AssignmentWriter interface {
	SaveAssignment(ctx context.Context, assignment *Assignment) error
}
