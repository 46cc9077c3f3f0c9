package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/google/uuid"
)

// CompletionObserver is told about every newly created completion.
type CompletionObserver interface {
	ObserveCompletion()
}

// Recorder marks lessons complete for learners who may open them.
type Recorder struct {
	engine   *Engine
	store    domain.CompletionStore
	observer CompletionObserver
	logger   *slog.Logger
}

// NewRecorder creates a completion recorder.
func NewRecorder(engine *Engine, store domain.CompletionStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{engine: engine, store: store, logger: logger}
}

// WithObserver sets an observer for new completions.
func (r *Recorder) WithObserver(o CompletionObserver) *Recorder {
	r.observer = o
	return r
}

// Completion is the outcome of completing a lesson.
type Completion struct {
	LessonID int64 `json:"lesson_id"`
	// Created is false when the lesson was already complete.
	Created bool           `json:"created"`
	Next    *domain.Lesson `json:"next,omitempty"`
}

// Complete records a completion. The lesson must belong to the course and be
// accessible; completing it twice is a no-op.
func (r *Recorder) Complete(ctx context.Context, userID uuid.UUID, courseID, lessonID int64) (*Completion, error) {
	nav, err := r.engine.Navigate(ctx, userID, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	if !nav.Accessible {
		return nil, fmt.Errorf("complete lesson %d: %w", lessonID, domain.ErrLessonLocked)
	}

	created, err := r.store.MarkComplete(ctx, userID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("mark complete: %w", err)
	}

	next, err := r.engine.NextLesson(ctx, userID, courseID, lessonID)
	if err != nil {
		return nil, err
	}

	if created {
		if r.observer != nil {
			r.observer.ObserveCompletion()
		}
		r.logger.Info("lesson completed",
			"user_id", userID,
			"course_id", courseID,
			"lesson_id", lessonID,
		)
	}

	return &Completion{LessonID: lessonID, Created: created, Next: next}, nil
}
