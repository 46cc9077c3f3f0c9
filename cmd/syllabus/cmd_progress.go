package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/felixgeelhaar/syllabus/internal/app"
	"github.com/felixgeelhaar/syllabus/internal/curriculum"
	"github.com/felixgeelhaar/syllabus/internal/judge"
	"github.com/felixgeelhaar/syllabus/internal/progress"
	"github.com/google/uuid"
)

// cmdProgress prints a learner's summary and the state of every lesson.
func cmdProgress(out io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: syllabus progress <user-id> <course-id>")
	}
	userID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[0], err)
	}
	courseID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid course id %q: %w", args[1], err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg, cliLogger())
	if err != nil {
		return err
	}
	defer stores.Close()

	course, err := stores.Courses.Course(ctx, courseID)
	if err != nil {
		return err
	}
	completed, err := stores.Completions.CompletedLessonIDs(ctx, userID, courseID)
	if err != nil {
		return err
	}

	engine := progress.NewEngine(stores.Courses, stores.Completions, cliLogger())
	sum, err := engine.Summary(ctx, userID, courseID)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, course.Name)
	fmt.Fprintf(out, "%s %d%% (%d/%d lessons)\n",
		renderProgressBar(float64(sum.Percent)/100, 20), sum.Percent, sum.Completed, sum.Total)
	if sum.Resume != nil {
		fmt.Fprintf(out, "Resume at: %s (lesson %d)\n", sum.Resume.Title, sum.Resume.ID)
	}
	fmt.Fprintln(out)

	for _, l := range curriculum.Flatten(course) {
		mark := "locked"
		switch {
		case slices.Contains(completed, l.ID):
			mark = "done"
		case slices.Contains(sum.AccessibleLessons, l.ID):
			mark = "open"
		}
		fmt.Fprintf(out, "  %-7s %4d  %s\n", mark, l.ID, l.Title)
	}
	return nil
}

// cmdLanguages prints the judge language table.
func cmdLanguages(out io.Writer) error {
	for _, l := range judge.Languages() {
		fmt.Fprintf(out, "%-12s %d\n", l.Name, l.ID)
	}
	return nil
}
