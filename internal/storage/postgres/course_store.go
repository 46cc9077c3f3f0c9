package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CourseStore implements the course hierarchy on PostgreSQL.
type CourseStore struct {
	pool *pgxpool.Pool
}

// NewCourseStore creates a new PostgreSQL course store.
func NewCourseStore(pool *pgxpool.Pool) *CourseStore {
	return &CourseStore{pool: pool}
}

// Course loads a course with its chapters and lessons.
func (s *CourseStore) Course(ctx context.Context, id int64) (*domain.Course, error) {
	course := &domain.Course{}
	err := s.pool.QueryRow(ctx, "SELECT id, slug, name FROM courses WHERE id = $1", id).
		Scan(&course.ID, &course.Slug, &course.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, course_id, slug, name, position
		FROM chapters WHERE course_id = $1
		ORDER BY position, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	chapters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Chapter, error) {
		var ch domain.Chapter
		err := row.Scan(&ch.ID, &ch.CourseID, &ch.Slug, &ch.Name, &ch.Position)
		return ch, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan chapters: %w", err)
	}
	course.Chapters = chapters

	index := make(map[int64]int, len(chapters))
	for i, ch := range chapters {
		index[ch.ID] = i
	}

	rows, err = s.pool.Query(ctx, `
		SELECT l.id, l.chapter_id, l.slug, l.title, l.body
		FROM lessons l JOIN chapters c ON c.id = l.chapter_id
		WHERE c.course_id = $1
		ORDER BY l.id`, id)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Lesson
		if err := rows.Scan(&l.ID, &l.ChapterID, &l.Slug, &l.Title, &l.Body); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		i := index[l.ChapterID]
		course.Chapters[i].Lessons = append(course.Chapters[i].Lessons, l)
	}
	return course, rows.Err()
}

// CourseIDBySlug resolves a course slug.
func (s *CourseStore) CourseIDBySlug(ctx context.Context, slug string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, "SELECT id FROM courses WHERE slug = $1", slug).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := s.pool.QueryRow(ctx, `
		SELECT c.course_id FROM lessons l JOIN chapters c ON c.id = l.chapter_id
		WHERE l.id = $1`, lessonID).Scan(&courseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrLessonNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get lesson course: %w", err)
	}
	return courseID, nil
}

// SaveCourse upserts a course, its chapters and lessons by slug.
func (s *CourseStore) SaveCourse(ctx context.Context, course *domain.Course) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO courses (slug, name) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			course.Slug, course.Name,
		).Scan(&course.ID)
		if err != nil {
			return fmt.Errorf("upsert course: %w", err)
		}

		for i := range course.Chapters {
			ch := &course.Chapters[i]
			ch.CourseID = course.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO chapters (course_id, slug, name, position) VALUES ($1, $2, $3, $4)
				ON CONFLICT (course_id, slug) DO UPDATE SET
					name = EXCLUDED.name, position = EXCLUDED.position
				RETURNING id`,
				ch.CourseID, ch.Slug, ch.Name, ch.Position,
			).Scan(&ch.ID)
			if err != nil {
				return fmt.Errorf("upsert chapter %s: %w", ch.Slug, err)
			}

			for j := range ch.Lessons {
				l := &ch.Lessons[j]
				l.ChapterID = ch.ID
				err := tx.QueryRow(ctx, `
					INSERT INTO lessons (chapter_id, slug, title, body) VALUES ($1, $2, $3, $4)
					ON CONFLICT (chapter_id, slug) DO UPDATE SET
						title = EXCLUDED.title, body = EXCLUDED.body
					RETURNING id`,
					l.ChapterID, l.Slug, l.Title, l.Body,
				).Scan(&l.ID)
				if err != nil {
					return fmt.Errorf("upsert lesson %s: %w", l.Slug, err)
				}
			}
		}
		return nil
	})
}
