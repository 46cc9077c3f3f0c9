package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CompletionStore records completions; the primary key on
// (user_id, lesson_id) resolves concurrent first inserts to one row.
type CompletionStore struct {
	pool *pgxpool.Pool
}

// NewCompletionStore creates a new PostgreSQL completion store.
func NewCompletionStore(pool *pgxpool.Pool) *CompletionStore {
	return &CompletionStore{pool: pool}
}

// MarkComplete inserts the completion unless it already exists.
func (s *CompletionStore) MarkComplete(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO lesson_completions (user_id, lesson_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, lesson_id) DO NOTHING`,
		userID, lessonID,
	)
	if err != nil {
		return false, fmt.Errorf("insert completion: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompletedLessonIDs lists completed lessons that belong to the course.
func (s *CompletionStore) CompletedLessonIDs(ctx context.Context, userID uuid.UUID, courseID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT lc.lesson_id
		FROM lesson_completions lc
		JOIN lessons l ON l.id = lc.lesson_id
		JOIN chapters c ON c.id = l.chapter_id
		WHERE lc.user_id = $1 AND c.course_id = $2
		ORDER BY lc.lesson_id`,
		userID, courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan completions: %w", err)
	}
	return ids, nil
}
