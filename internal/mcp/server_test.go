package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/grading"
	"github.com/felixgeelhaar/syllabus/internal/judge"
	"github.com/felixgeelhaar/syllabus/internal/progress"
	"github.com/felixgeelhaar/syllabus/internal/storage/sqlite"
	"github.com/google/uuid"
)

// scriptedJudge prints stdout for every submission.
type scriptedJudge struct {
	stdout string
}

func (j scriptedJudge) Submit(_ context.Context, _ *judge.Submission, _ bool) (*judge.Result, error) {
	return &judge.Result{Stdout: j.stdout, Status: judge.NewStatus(judge.StatusAccepted)}, nil
}

type testEnv struct {
	server     *Server
	course     *domain.Course
	assignment int64
	// locked belongs to the course's second lesson.
	locked int64
}

func setupTestServer(t *testing.T, stdout string) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "mcp.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	courses := sqlite.NewCourseStore(db)
	completions := sqlite.NewCompletionStore(db)
	assignments := sqlite.NewAssignmentStore(db)

	course := &domain.Course{Slug: "py", Name: "Python", Chapters: []domain.Chapter{{
		Slug: "intro", Name: "Intro", Position: 1,
		Lessons: []domain.Lesson{{Slug: "one", Title: "One"}, {Slug: "two", Title: "Two"}},
	}}}
	if err := courses.SaveCourse(ctx, course); err != nil {
		t.Fatalf("save course: %v", err)
	}

	a := &domain.Assignment{
		LessonID:  course.Chapters[0].Lessons[0].ID,
		Slug:      "greet",
		Language:  "python",
		TestCases: []domain.TestCase{{ExpectedOutput: "hello"}, {Stdin: "x", ExpectedOutput: "bye"}},
	}
	if err := assignments.SaveAssignment(ctx, a); err != nil {
		t.Fatalf("save assignment: %v", err)
	}
	later := &domain.Assignment{
		LessonID:  course.Chapters[0].Lessons[1].ID,
		Slug:      "farewell",
		Language:  "python",
		TestCases: []domain.TestCase{{ExpectedOutput: "bye"}},
	}
	if err := assignments.SaveAssignment(ctx, later); err != nil {
		t.Fatalf("save assignment: %v", err)
	}

	client := scriptedJudge{stdout: stdout}
	engine := progress.NewEngine(courses, completions, nil)
	server := NewServer(Config{
		Version:  "test",
		Engine:   engine,
		Recorder: progress.NewRecorder(engine, completions, nil),
		Grader: grading.NewGrader(assignments,
			grading.NewRunService(client, nil),
			grading.NewSubmitService(client, 2, nil),
			nil, nil, nil),
		Assignments: assignments,
	})

	return &testEnv{server: server, course: course, assignment: a.ID, locked: later.ID}
}

func TestNewServer(t *testing.T) {
	env := setupTestServer(t, "")

	if env.server.GetMCPServer() == nil {
		t.Fatal("expected non-nil underlying MCP server")
	}
}

func TestServerConfig(t *testing.T) {
	// Nil services must not panic at construction
	if NewServer(Config{}) == nil {
		t.Fatal("expected non-nil server even with nil config")
	}
}

func TestProgressAndComplete(t *testing.T) {
	env := setupTestServer(t, "")
	ctx := context.Background()
	user := uuid.NewString()
	lessons := env.course.Chapters[0].Lessons

	out, err := env.server.handleProgress(ctx, ProgressInput{UserID: user, CourseID: env.course.ID})
	if err != nil {
		t.Fatalf("handleProgress() error = %v", err)
	}
	if out.Total != 2 || out.Completed != 0 || out.ResumeLessonID != lessons[0].ID {
		t.Errorf("progress = %+v", out)
	}

	_, err = env.server.handleComplete(ctx, CompleteInput{UserID: user, CourseID: env.course.ID, LessonID: lessons[1].ID})
	if !errors.Is(err, domain.ErrLessonLocked) {
		t.Errorf("complete locked lesson error = %v; want ErrLessonLocked", err)
	}

	done, err := env.server.handleComplete(ctx, CompleteInput{UserID: user, CourseID: env.course.ID, LessonID: lessons[0].ID})
	if err != nil {
		t.Fatalf("handleComplete() error = %v", err)
	}
	if !done.Created || done.NextLessonID != lessons[1].ID {
		t.Errorf("complete = %+v", done)
	}

	out, _ = env.server.handleProgress(ctx, ProgressInput{UserID: user, CourseID: env.course.ID})
	if out.Completed != 1 || out.Percent != 50 || out.ResumeLessonID != lessons[1].ID {
		t.Errorf("progress after complete = %+v", out)
	}
}

func TestProgress_InvalidUser(t *testing.T) {
	env := setupTestServer(t, "")

	if _, err := env.server.handleProgress(context.Background(), ProgressInput{UserID: "nobody", CourseID: env.course.ID}); err == nil {
		t.Error("expected error for invalid user id")
	}
}

func TestSubmit(t *testing.T) {
	env := setupTestServer(t, "hello\n")

	out, err := env.server.handleSubmit(context.Background(), SubmitInput{UserID: uuid.NewString(), AssignmentID: env.assignment, Code: "print('hello')"})
	if err != nil {
		t.Fatalf("handleSubmit() error = %v", err)
	}

	if out.Success || out.Passed != 1 || out.Total != 2 {
		t.Errorf("submit = %+v", out)
	}
	if out.Summary != "1 of 2 tests passed" {
		t.Errorf("Summary = %q", out.Summary)
	}
	if len(out.Failures) != 1 || !strings.Contains(out.Failures[0], `expected "bye"`) {
		t.Errorf("Failures = %v", out.Failures)
	}
}

func TestSubmit_EmptyCode(t *testing.T) {
	env := setupTestServer(t, "")

	_, err := env.server.handleSubmit(context.Background(), SubmitInput{UserID: uuid.NewString(), AssignmentID: env.assignment})
	if !errors.Is(err, domain.ErrEmptyCode) {
		t.Errorf("error = %v; want ErrEmptyCode", err)
	}
}

func TestRun(t *testing.T) {
	env := setupTestServer(t, "out")

	res, err := env.server.handleRun(context.Background(), RunInput{UserID: uuid.NewString(), AssignmentID: env.assignment, Code: "print('out')"})
	if err != nil {
		t.Fatalf("handleRun() error = %v", err)
	}
	if !res.Success || res.Output != "out" {
		t.Errorf("run = %+v", res)
	}
}

func TestRunAndSubmit_LockedLesson(t *testing.T) {
	env := setupTestServer(t, "bye")
	ctx := context.Background()
	user := uuid.NewString()

	if _, err := env.server.handleRun(ctx, RunInput{UserID: user, AssignmentID: env.locked, Code: "print('bye')"}); !errors.Is(err, domain.ErrLessonLocked) {
		t.Errorf("handleRun() error = %v; want ErrLessonLocked", err)
	}
	if _, err := env.server.handleSubmit(ctx, SubmitInput{UserID: user, AssignmentID: env.locked, Code: "print('bye')"}); !errors.Is(err, domain.ErrLessonLocked) {
		t.Errorf("handleSubmit() error = %v; want ErrLessonLocked", err)
	}

	first := env.course.Chapters[0].Lessons[0].ID
	if _, err := env.server.handleComplete(ctx, CompleteInput{UserID: user, CourseID: env.course.ID, LessonID: first}); err != nil {
		t.Fatalf("handleComplete() error = %v", err)
	}
	out, err := env.server.handleSubmit(ctx, SubmitInput{UserID: user, AssignmentID: env.locked, Code: "print('bye')"})
	if err != nil {
		t.Fatalf("handleSubmit() after unlock error = %v", err)
	}
	if !out.Success || out.Passed != 1 {
		t.Errorf("submit = %+v", out)
	}
}

func TestRun_InvalidUser(t *testing.T) {
	env := setupTestServer(t, "")

	if _, err := env.server.handleRun(context.Background(), RunInput{UserID: "nobody", AssignmentID: env.assignment, Code: "x"}); err == nil {
		t.Error("expected error for invalid user id")
	}
}

func TestLanguages(t *testing.T) {
	env := setupTestServer(t, "")

	out, err := env.server.handleLanguages(context.Background(), LanguagesInput{})
	if err != nil {
		t.Fatalf("handleLanguages() error = %v", err)
	}
	found := false
	for _, l := range out.Languages {
		if l.Name == "python" && l.ID == judge.DefaultLanguageID {
			found = true
		}
	}
	if !found {
		t.Errorf("python missing from %v", out.Languages)
	}
}

func TestFailures_Suite(t *testing.T) {
	v := &grading.Verdict{Suite: &grading.TestSuiteResult{Results: []grading.TestOutcome{
		{Test: "adds", Status: grading.OutcomePassed},
		{Test: "subtracts", Status: grading.OutcomeFailed, Message: "expected 1\nbut was 2"},
	}}}

	got := failures(v)
	if len(got) != 1 || got[0] != "subtracts failed: expected 1" {
		t.Errorf("failures = %v", got)
	}
}
