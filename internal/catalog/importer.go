package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/syllabus/internal/domain"
)

// Summary counts what an import wrote.
type Summary struct {
	CourseID    int64 `json:"course_id"`
	Chapters    int   `json:"chapters"`
	Lessons     int   `json:"lessons"`
	Assignments int   `json:"assignments"`
	TestCases   int   `json:"test_cases"`
}

// Importer writes packs into a catalog store. Imports upsert by slug, so
// re-importing a pack updates content and keeps ids.
type Importer struct {
	courses     domain.CourseWriter
	assignments domain.AssignmentWriter
	logger      *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(courses domain.CourseWriter, assignments domain.AssignmentWriter, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{courses: courses, assignments: assignments, logger: logger}
}

// Import validates the pack, saves the course hierarchy, then each lesson's
// assignments.
func (i *Importer) Import(ctx context.Context, pack *PackFile) (*Summary, error) {
	if err := pack.Validate(); err != nil {
		return nil, err
	}
	course := ToCourse(pack)
	if err := i.courses.SaveCourse(ctx, course); err != nil {
		return nil, fmt.Errorf("save course %s: %w", course.Slug, err)
	}

	sum := &Summary{CourseID: course.ID, Chapters: len(course.Chapters)}
	for ci, ch := range pack.Chapters {
		for li, l := range ch.Lessons {
			sum.Lessons++
			lessonID := course.Chapters[ci].Lessons[li].ID

			for _, af := range l.Assignments {
				a := toAssignment(af, lessonID)
				if err := i.assignments.SaveAssignment(ctx, a); err != nil {
					return nil, fmt.Errorf("save assignment %s: %w", af.Slug, err)
				}
				sum.Assignments++
				sum.TestCases += len(a.TestCases)
			}
		}
	}

	i.logger.Info("imported course pack",
		"course", course.Slug,
		"course_id", course.ID,
		"lessons", sum.Lessons,
		"assignments", sum.Assignments)
	return sum, nil
}

// ToCourse converts a pack into an unsaved course hierarchy.
func ToCourse(pack *PackFile) *domain.Course {
	course := &domain.Course{
		Slug:     pack.Course.Slug,
		Name:     pack.Course.Name,
		Chapters: make([]domain.Chapter, 0, len(pack.Chapters)),
	}
	for _, ch := range pack.Chapters {
		name := ch.Name
		if name == "" {
			name = ch.Slug
		}
		chapter := domain.Chapter{
			Slug:     ch.Slug,
			Name:     name,
			Position: ch.Position,
			Lessons:  make([]domain.Lesson, 0, len(ch.Lessons)),
		}
		for _, l := range ch.Lessons {
			title := l.Title
			if title == "" {
				title = l.Slug
			}
			chapter.Lessons = append(chapter.Lessons, domain.Lesson{
				Slug:  l.Slug,
				Title: title,
				Body:  l.Body,
			})
		}
		course.Chapters = append(course.Chapters, chapter)
	}
	return course
}

func toAssignment(af AssignmentFile, lessonID int64) *domain.Assignment {
	a := &domain.Assignment{
		LessonID:     lessonID,
		Slug:         af.Slug,
		Title:        af.Title,
		Instructions: af.Instructions,
		StarterCode:  af.StarterCode,
		Solution:     af.Solution,
		Language:     af.Language,
	}
	if af.Harness != nil {
		a.TestCases = append(a.TestCases, domain.TestCase{
			HarnessFile: af.Harness.Source,
			ClassName:   af.Harness.ClassName,
		})
	}
	for _, t := range af.Tests {
		a.TestCases = append(a.TestCases, domain.TestCase{
			Stdin:          t.Stdin,
			ExpectedOutput: t.ExpectedOutput,
		})
	}
	return a
}
