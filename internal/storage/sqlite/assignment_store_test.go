package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/syllabus/internal/domain"
)

func seedOtherCourse(t *testing.T, db *DB) *domain.Course {
	t.Helper()
	course := &domain.Course{
		Slug: "java-101",
		Name: "Java 101",
		Chapters: []domain.Chapter{
			{Slug: "start", Name: "Start", Position: 1, Lessons: []domain.Lesson{{Slug: "main", Title: "Main"}}},
		},
	}
	if err := NewCourseStore(db).SaveCourse(context.Background(), course); err != nil {
		t.Fatalf("SaveCourse() error = %v", err)
	}
	return course
}

func TestAssignmentStore_SaveAssignment_Assignment(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	course := seedCourse(t, db)
	store := NewAssignmentStore(db)

	a := &domain.Assignment{
		LessonID:     course.Chapters[1].Lessons[0].ID,
		Slug:         "sum",
		Title:        "Sum two numbers",
		Instructions: "Read two ints and print their sum.",
		StarterCode:  "a, b = map(int, input().split())",
		Language:     "python",
		TestCases: []domain.TestCase{
			{Stdin: "1 2", ExpectedOutput: "3"},
			{Stdin: "5 5", ExpectedOutput: "10"},
			{Stdin: "0 0", ExpectedOutput: "0"},
		},
	}
	if err := store.SaveAssignment(ctx, a); err != nil {
		t.Fatalf("SaveAssignment() error = %v", err)
	}

	got, err := store.Assignment(ctx, a.ID)
	if err != nil {
		t.Fatalf("Assignment() error = %v", err)
	}
	if got.Language != "python" || got.Title != a.Title {
		t.Errorf("Assignment() = %+v", got)
	}
	if len(got.TestCases) != 3 {
		t.Fatalf("len(TestCases) = %d; want 3", len(got.TestCases))
	}
	for i, want := range []string{"3", "10", "0"} {
		if got.TestCases[i].ExpectedOutput != want {
			t.Errorf("TestCases[%d].ExpectedOutput = %q; want %q", i, got.TestCases[i].ExpectedOutput, want)
		}
	}
}

func TestAssignmentStore_SaveAssignment_ReplacesTestCases(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	course := seedOtherCourse(t, db)
	store := NewAssignmentStore(db)
	lesson := course.Chapters[0].Lessons[0].ID

	a := &domain.Assignment{LessonID: lesson, Slug: "calc", Language: "java",
		TestCases: []domain.TestCase{{Stdin: "x"}, {Stdin: "y"}}}
	if err := store.SaveAssignment(ctx, a); err != nil {
		t.Fatalf("SaveAssignment() error = %v", err)
	}
	firstID := a.ID

	b := &domain.Assignment{LessonID: lesson, Slug: "calc", Language: "java",
		TestCases: []domain.TestCase{{HarnessFile: "class CalcTest {}", ClassName: "CalcTest"}}}
	if err := store.SaveAssignment(ctx, b); err != nil {
		t.Fatalf("SaveAssignment() error = %v", err)
	}
	if b.ID != firstID {
		t.Errorf("assignment id = %d; want %d", b.ID, firstID)
	}

	list, err := store.LessonAssignments(ctx, lesson)
	if err != nil {
		t.Fatalf("LessonAssignments() error = %v", err)
	}
	if len(list) != 1 || len(list[0].TestCases) != 1 {
		t.Fatalf("LessonAssignments() = %+v; want one assignment with one case", list)
	}
	if list[0].TestCases[0].ClassName != "CalcTest" {
		t.Errorf("ClassName = %q; want CalcTest", list[0].TestCases[0].ClassName)
	}
	if _, ok := list[0].Plan().(domain.MultiFilePlan); !ok {
		t.Errorf("Plan() = %T; want MultiFilePlan", list[0].Plan())
	}
}

func TestAssignmentStore_NotFound(t *testing.T) {
	store := NewAssignmentStore(openTestDB(t))
	_, err := store.Assignment(context.Background(), 7)
	if !errors.Is(err, domain.ErrAssignmentNotFound) {
		t.Errorf("Assignment() error = %v; want ErrAssignmentNotFound", err)
	}
}
