// Package progress decides which lessons a learner may open and records
// lesson completions.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/syllabus/internal/curriculum"
	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/google/uuid"
)

// CompletionReader is the read side of the completion store.
type CompletionReader interface {
	CompletedLessonIDs(ctx context.Context, userID uuid.UUID, courseID int64) ([]int64, error)
}

// Engine computes lesson accessibility and navigation. Every call reloads the
// course and the completion set; nothing is cached between calls.
type Engine struct {
	courses     domain.CourseReader
	completions CompletionReader
	logger      *slog.Logger
}

// NewEngine creates a progression engine.
func NewEngine(courses domain.CourseReader, completions CompletionReader, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		courses:     courses,
		completions: completions,
		logger:      logger,
	}
}

// Navigation describes a lesson from one learner's point of view.
type Navigation struct {
	Lesson     domain.Lesson  `json:"lesson"`
	Index      int            `json:"index"`
	Total      int            `json:"total"`
	Accessible bool           `json:"accessible"`
	Completed  bool           `json:"completed"`
	Prev       *domain.Lesson `json:"prev,omitempty"`
	Next       *domain.Lesson `json:"next,omitempty"`
	// Fallback is the closest accessible lesson before a locked one.
	Fallback *domain.Lesson `json:"fallback,omitempty"`
}

// Summary aggregates a learner's progress through a course.
type Summary struct {
	CourseID          int64          `json:"course_id"`
	Completed         int            `json:"completed"`
	Total             int            `json:"total"`
	Percent           int            `json:"percent"`
	AccessibleLessons []int64        `json:"accessible_lesson_ids"`
	Resume            *domain.Lesson `json:"resume,omitempty"`
}

// snapshot is one consistent read of a course sequence and a completion set.
type snapshot struct {
	seq       []domain.Lesson
	completed map[int64]bool
}

func (e *Engine) load(ctx context.Context, userID uuid.UUID, courseID int64) (*snapshot, error) {
	course, err := e.courses.Course(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course %d: %w", courseID, err)
	}

	ids, err := e.completions.CompletedLessonIDs(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load completions: %w", err)
	}

	completed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		completed[id] = true
	}

	return &snapshot{seq: curriculum.Flatten(course), completed: completed}, nil
}

// unlocked applies the unlock rule to one index: the first lesson is always
// open, any other lesson is open iff its immediate predecessor is completed.
// The rule is local to the predecessor, so a lesson after a skipped one can
// still be open.
func (s *snapshot) unlocked(i int) bool {
	if i < 0 || i >= len(s.seq) {
		return false
	}
	return i == 0 || s.completed[s.seq[i-1].ID]
}

func (s *snapshot) accessible() []int64 {
	ids := make([]int64, 0, len(s.seq))
	for i, l := range s.seq {
		if s.unlocked(i) {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// AccessibleLessonIDs returns the lessons the user may open, in sequence order.
func (e *Engine) AccessibleLessonIDs(ctx context.Context, userID uuid.UUID, courseID int64) ([]int64, error) {
	snap, err := e.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	return snap.accessible(), nil
}

// CanAccess reports whether the user may open a lesson. Unknown lessons are
// simply not accessible.
func (e *Engine) CanAccess(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error) {
	courseID, err := e.courses.LessonCourseID(ctx, lessonID)
	if errors.Is(err, domain.ErrLessonNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve lesson course: %w", err)
	}
	return e.CanAccessInCourse(ctx, userID, courseID, lessonID)
}

// CanAccessInCourse is CanAccess for a known course. A lesson outside the
// course is not accessible.
func (e *Engine) CanAccessInCourse(ctx context.Context, userID uuid.UUID, courseID, lessonID int64) (bool, error) {
	snap, err := e.load(ctx, userID, courseID)
	if err != nil {
		return false, err
	}
	return snap.unlocked(curriculum.IndexOf(snap.seq, lessonID)), nil
}

// FirstLesson returns the head of the course sequence, or nil for an empty course.
func (e *Engine) FirstLesson(ctx context.Context, courseID int64) (*domain.Lesson, error) {
	course, err := e.courses.Course(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course %d: %w", courseID, err)
	}
	seq := curriculum.Flatten(course)
	if len(seq) == 0 {
		return nil, nil
	}
	return &seq[0], nil
}

// NextLesson returns the lesson after lessonID when the user may open it.
// It returns nil at the end of the sequence, when the next lesson is locked,
// or when lessonID is not part of the course.
func (e *Engine) NextLesson(ctx context.Context, userID uuid.UUID, courseID, lessonID int64) (*domain.Lesson, error) {
	snap, err := e.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	return snap.next(curriculum.IndexOf(snap.seq, lessonID)), nil
}

func (s *snapshot) next(i int) *domain.Lesson {
	if i < 0 || i+1 >= len(s.seq) {
		return nil
	}
	candidate := s.seq[i+1]
	for _, id := range s.accessible() {
		if id == candidate.ID {
			return &candidate
		}
	}
	return nil
}

// PrevLesson returns the lesson before lessonID, or nil at the start of the
// sequence or for a lesson outside the course.
func (e *Engine) PrevLesson(ctx context.Context, courseID, lessonID int64) (*domain.Lesson, error) {
	course, err := e.courses.Course(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course %d: %w", courseID, err)
	}
	seq := curriculum.Flatten(course)
	i := curriculum.IndexOf(seq, lessonID)
	if i <= 0 {
		return nil, nil
	}
	return &seq[i-1], nil
}

// Navigate resolves a lesson inside a course for a user. It returns
// ErrLessonNotFound when the lesson does not belong to the course.
func (e *Engine) Navigate(ctx context.Context, userID uuid.UUID, courseID, lessonID int64) (*Navigation, error) {
	snap, err := e.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	i := curriculum.IndexOf(snap.seq, lessonID)
	if i < 0 {
		return nil, fmt.Errorf("lesson %d in course %d: %w", lessonID, courseID, domain.ErrLessonNotFound)
	}

	nav := &Navigation{
		Lesson:     snap.seq[i],
		Index:      i,
		Total:      len(snap.seq),
		Accessible: snap.unlocked(i),
		Completed:  snap.completed[lessonID],
		Next:       snap.next(i),
	}
	if i > 0 {
		prev := snap.seq[i-1]
		nav.Prev = &prev
	}
	if !nav.Accessible {
		for j := i - 1; j >= 0; j-- {
			if snap.unlocked(j) {
				fallback := snap.seq[j]
				nav.Fallback = &fallback
				break
			}
		}
		e.logger.Debug("lesson locked",
			"user_id", userID,
			"course_id", courseID,
			"lesson_id", lessonID,
		)
	}
	return nav, nil
}

// Summary reports completion counts and the lesson to resume from.
func (e *Engine) Summary(ctx context.Context, userID uuid.UUID, courseID int64) (*Summary, error) {
	snap, err := e.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		CourseID:          courseID,
		Total:             len(snap.seq),
		AccessibleLessons: snap.accessible(),
	}
	for i, l := range snap.seq {
		if snap.completed[l.ID] {
			sum.Completed++
			continue
		}
		if sum.Resume == nil && snap.unlocked(i) {
			resume := l
			sum.Resume = &resume
		}
	}
	if sum.Total > 0 {
		sum.Percent = sum.Completed * 100 / sum.Total
	}
	return sum, nil
}
