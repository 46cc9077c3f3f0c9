package domain

import (
	"time"

	"github.com/google/uuid"
)

// CompletionRecord proves a user finished a lesson. At most one exists per
// (UserID, LessonID) and records are never updated.
type CompletionRecord struct {
	UserID      uuid.UUID `json:"user_id"`
	LessonID    int64     `json:"lesson_id"`
	CompletedAt time.Time `json:"completed_at"`
}
