package progress

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/google/uuid"
)

type fakeCourses struct {
	courses map[int64]*domain.Course
	err     error
}

func (f *fakeCourses) Course(ctx context.Context, id int64) (*domain.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.courses[id]
	if !ok {
		return nil, domain.ErrCourseNotFound
	}
	return c, nil
}

func (f *fakeCourses) LessonCourseID(ctx context.Context, lessonID int64) (int64, error) {
	for id, c := range f.courses {
		if _, ok := c.FindLesson(lessonID); ok {
			return id, nil
		}
	}
	return 0, domain.ErrLessonNotFound
}

type memCompletions struct {
	mu   sync.Mutex
	done map[uuid.UUID]map[int64]bool
}

func newMemCompletions() *memCompletions {
	return &memCompletions{done: make(map[uuid.UUID]map[int64]bool)}
}

func (m *memCompletions) MarkComplete(ctx context.Context, userID uuid.UUID, lessonID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done[userID] == nil {
		m.done[userID] = make(map[int64]bool)
	}
	if m.done[userID][lessonID] {
		return false, nil
	}
	m.done[userID][lessonID] = true
	return true, nil
}

func (m *memCompletions) CompletedLessonIDs(ctx context.Context, userID uuid.UUID, courseID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id := range m.done[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

// threeChapterCourse has sequence 1, 2, 3, 4, 5 with chapter positions out of
// storage order.
func threeChapterCourse() *domain.Course {
	return &domain.Course{
		ID:   7,
		Name: "Go Basics",
		Chapters: []domain.Chapter{
			{ID: 30, Position: 3, Lessons: []domain.Lesson{{ID: 5}}},
			{ID: 10, Position: 1, Lessons: []domain.Lesson{{ID: 2}, {ID: 1}}},
			{ID: 20, Position: 2, Lessons: []domain.Lesson{{ID: 3}, {ID: 4}}},
		},
	}
}

func newTestEngine(courses ...*domain.Course) (*Engine, *memCompletions) {
	fc := &fakeCourses{courses: make(map[int64]*domain.Course)}
	for _, c := range courses {
		fc.courses[c.ID] = c
	}
	store := newMemCompletions()
	return NewEngine(fc, store, nil), store
}
