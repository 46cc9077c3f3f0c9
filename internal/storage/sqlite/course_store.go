package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/syllabus/internal/domain"
)

// CourseStore reads and upserts the course hierarchy.
type CourseStore struct {
	db *DB
}

// NewCourseStore creates a new SQLite-backed course store.
func NewCourseStore(db *DB) *CourseStore {
	return &CourseStore{db: db}
}

// Course loads a course with its chapters and lessons.
func (s *CourseStore) Course(ctx context.Context, id int64) (*domain.Course, error) {
	course := &domain.Course{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, slug, name FROM courses WHERE id = ?", id,
	).Scan(&course.ID, &course.Slug, &course.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, course_id, slug, name, position
		FROM chapters WHERE course_id = ?
		ORDER BY position, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	// Rows must be closed before the next query: the pool holds one connection.
	index := make(map[int64]int)
	for rows.Next() {
		var ch domain.Chapter
		if err := rows.Scan(&ch.ID, &ch.CourseID, &ch.Slug, &ch.Name, &ch.Position); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		index[ch.ID] = len(course.Chapters)
		course.Chapters = append(course.Chapters, ch)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lessonRows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.chapter_id, l.slug, l.title, l.body
		FROM lessons l JOIN chapters c ON c.id = l.chapter_id
		WHERE c.course_id = ?
		ORDER BY l.id`, id)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer lessonRows.Close()

	for lessonRows.Next() {
		var l domain.Lesson
		if err := lessonRows.Scan(&l.ID, &l.ChapterID, &l.Slug, &l.Title, &l.Body); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		i := index[l.ChapterID]
		course.Chapters[i].Lessons = append(course.Chapters[i].Lessons, l)
	}
	return course, lessonRows.Err()
}

// CourseIDBySlug resolves a course slug.
func (s *CourseStore) CourseIDBySlug(ctx context.Context, slug string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM courses WHERE slug = ?", slug).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrCourseNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get course id: %w", err)
	}
	return id, nil
}

// LessonCourseID returns the course owning a lesson.
func (s *CourseStore) LessonCourseID(ctx context.Context, lessonID int64) (int64, error) {
	var courseID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT c.course_id FROM lessons l JOIN chapters c ON c.id = l.chapter_id
		WHERE l.id = ?`, lessonID).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrLessonNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get lesson course: %w", err)
	}
	return courseID, nil
}

// SaveCourse upserts a course, its chapters and lessons by slug and fills in
// the generated IDs. New lessons get increasing IDs in slice order.
func (s *CourseStore) SaveCourse(ctx context.Context, course *domain.Course) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO courses (slug, name) VALUES (?, ?)
		ON CONFLICT(slug) DO UPDATE SET name=excluded.name
		RETURNING id`,
		course.Slug, course.Name,
	).Scan(&course.ID)
	if err != nil {
		return fmt.Errorf("upsert course: %w", err)
	}

	for i := range course.Chapters {
		ch := &course.Chapters[i]
		ch.CourseID = course.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO chapters (course_id, slug, name, position) VALUES (?, ?, ?, ?)
			ON CONFLICT(course_id, slug) DO UPDATE SET
				name=excluded.name, position=excluded.position
			RETURNING id`,
			ch.CourseID, ch.Slug, ch.Name, ch.Position,
		).Scan(&ch.ID)
		if err != nil {
			return fmt.Errorf("upsert chapter %s: %w", ch.Slug, err)
		}

		for j := range ch.Lessons {
			l := &ch.Lessons[j]
			l.ChapterID = ch.ID
			err := tx.QueryRowContext(ctx, `
				INSERT INTO lessons (chapter_id, slug, title, body) VALUES (?, ?, ?, ?)
				ON CONFLICT(chapter_id, slug) DO UPDATE SET
					title=excluded.title, body=excluded.body
				RETURNING id`,
				l.ChapterID, l.Slug, l.Title, l.Body,
			).Scan(&l.ID)
			if err != nil {
				return fmt.Errorf("upsert lesson %s: %w", l.Slug, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit course: %w", err)
	}
	return nil
}
