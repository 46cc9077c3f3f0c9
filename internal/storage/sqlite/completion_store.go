package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CompletionStore records lesson completions. The (user_id, lesson_id)
// primary key makes the insert idempotent under concurrent callers.
type CompletionStore struct {
	db  *DB
	now func() time.Time
}

// NewCompletionStore creates a new SQLite-backed completion store.
func NewCompletionStore(db *DB) *CompletionStore {
	return &CompletionStore{db: db, now: time.Now}
}

// MarkComplete inserts the completion unless it already exists.
func (s *CompletionStore) MarkComplete(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO lesson_completions (user_id, lesson_id, completed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, lesson_id) DO NOTHING`,
		userID.String(), lessonID, s.now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// CompletedLessonIDs lists completed lessons that belong to the course.
func (s *CompletionStore) CompletedLessonIDs(ctx context.Context, userID uuid.UUID, courseID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lc.lesson_id
		FROM lesson_completions lc
		JOIN lessons l ON l.id = lc.lesson_id
		JOIN chapters c ON c.id = l.chapter_id
		WHERE lc.user_id = ? AND c.course_id = ?
		ORDER BY lc.lesson_id`,
		userID.String(), courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
