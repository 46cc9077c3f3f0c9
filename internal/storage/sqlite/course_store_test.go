package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/syllabus/internal/domain"
)

// seedCourse stores a two-chapter course whose chapters are listed out of
// position order.
func seedCourse(t *testing.T, db *DB) *domain.Course {
	t.Helper()
	course := &domain.Course{
		Slug: "go-basics",
		Name: "Go Basics",
		Chapters: []domain.Chapter{
			{Slug: "types", Name: "Types", Position: 2, Lessons: []domain.Lesson{
				{Slug: "structs", Title: "Structs"},
			}},
			{Slug: "intro", Name: "Intro", Position: 1, Lessons: []domain.Lesson{
				{Slug: "hello", Title: "Hello"},
				{Slug: "vars", Title: "Variables"},
			}},
		},
	}
	if err := NewCourseStore(db).SaveCourse(context.Background(), course); err != nil {
		t.Fatalf("SaveCourse() error = %v", err)
	}
	return course
}

func TestCourseStore_SaveCourse_Course(t *testing.T) {
	db := openTestDB(t)
	store := NewCourseStore(db)
	seeded := seedCourse(t, db)

	if seeded.ID == 0 {
		t.Fatal("SaveCourse() did not assign a course id")
	}

	got, err := store.Course(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("Course() error = %v", err)
	}
	if got.Name != "Go Basics" {
		t.Errorf("Name = %q; want Go Basics", got.Name)
	}
	if len(got.Chapters) != 2 {
		t.Fatalf("len(Chapters) = %d; want 2", len(got.Chapters))
	}
	if got.Chapters[0].Slug != "intro" || got.Chapters[0].Position != 1 {
		t.Errorf("Chapters[0] = %+v; want intro at position 1", got.Chapters[0])
	}
	if n := len(got.Chapters[0].Lessons); n != 2 {
		t.Fatalf("len(intro lessons) = %d; want 2", n)
	}
	hello, vars := got.Chapters[0].Lessons[0], got.Chapters[0].Lessons[1]
	if hello.Slug != "hello" || vars.Slug != "vars" || hello.ID >= vars.ID {
		t.Errorf("intro lessons = %+v, %+v; want hello before vars by id", hello, vars)
	}
}

func TestCourseStore_SaveCourse_Upsert(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewCourseStore(db)
	seeded := seedCourse(t, db)
	helloID := seeded.Chapters[1].Lessons[0].ID

	again := &domain.Course{
		Slug: "go-basics",
		Name: "Go Basics (2nd ed.)",
		Chapters: []domain.Chapter{
			{Slug: "intro", Name: "Intro", Position: 5, Lessons: []domain.Lesson{
				{Slug: "hello", Title: "Hello, World"},
			}},
		},
	}
	if err := store.SaveCourse(ctx, again); err != nil {
		t.Fatalf("SaveCourse() error = %v", err)
	}
	if again.ID != seeded.ID {
		t.Errorf("course id = %d; want %d", again.ID, seeded.ID)
	}
	if again.Chapters[0].Lessons[0].ID != helloID {
		t.Errorf("lesson id changed on upsert: %d; want %d", again.Chapters[0].Lessons[0].ID, helloID)
	}

	got, _ := store.Course(ctx, seeded.ID)
	if got.Chapters[0].Slug != "types" {
		t.Errorf("first chapter = %q; want types after reposition", got.Chapters[0].Slug)
	}
}

func TestCourseStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewCourseStore(openTestDB(t))

	if _, err := store.Course(ctx, 99); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Errorf("Course() error = %v; want ErrCourseNotFound", err)
	}
	if _, err := store.LessonCourseID(ctx, 99); !errors.Is(err, domain.ErrLessonNotFound) {
		t.Errorf("LessonCourseID() error = %v; want ErrLessonNotFound", err)
	}
	if _, err := store.CourseIDBySlug(ctx, "nope"); !errors.Is(err, domain.ErrCourseNotFound) {
		t.Errorf("CourseIDBySlug() error = %v; want ErrCourseNotFound", err)
	}
}

func TestCourseStore_LessonCourseID(t *testing.T) {
	db := openTestDB(t)
	store := NewCourseStore(db)
	seeded := seedCourse(t, db)

	got, err := store.LessonCourseID(context.Background(), seeded.Chapters[0].Lessons[0].ID)
	if err != nil {
		t.Fatalf("LessonCourseID() error = %v", err)
	}
	if got != seeded.ID {
		t.Errorf("LessonCourseID() = %d; want %d", got, seeded.ID)
	}

	id, err := store.CourseIDBySlug(context.Background(), "go-basics")
	if err != nil || id != seeded.ID {
		t.Errorf("CourseIDBySlug() = %d, %v; want %d", id, err, seeded.ID)
	}
}
