package grading

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/syllabus/internal/domain"
)

// VerdictObserver receives one sample per graded submission.
type VerdictObserver interface {
	ObserveVerdict(mode, outcome string)
}

// Grader loads assignments and dispatches them to the service matching
// their grading plan.
type Grader struct {
	assignments domain.AssignmentReader
	runner      *RunService
	submitter   *SubmitService
	multi       *MultiFileService
	observer    VerdictObserver
	logger      *slog.Logger
}

// NewGrader creates a grader. observer may be nil.
func NewGrader(assignments domain.AssignmentReader, runner *RunService, submitter *SubmitService, multi *MultiFileService, observer VerdictObserver, logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{
		assignments: assignments,
		runner:      runner,
		submitter:   submitter,
		multi:       multi,
		observer:    observer,
		logger:      logger,
	}
}

// Grade grades code for an already loaded assignment.
func (g *Grader) Grade(ctx context.Context, a *domain.Assignment, code string) (*Verdict, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: assignment is required", domain.ErrInvalidInput)
	}

	plan := a.Plan()
	v := &Verdict{AssignmentID: a.ID, Mode: plan.Mode()}

	switch p := plan.(type) {
	case domain.SimplePlan:
		res, err := g.submitter.Grade(ctx, a.Language, code, p.TestCases)
		if err != nil {
			g.observe(v.Mode, OutcomeError)
			return nil, err
		}
		v.Submit = res
		v.Success, v.Passed, v.Total = res.Success, res.Passed, res.Total
	case domain.MultiFilePlan:
		res, err := g.multi.Execute(ctx, code, p.Harness)
		if err != nil {
			g.observe(v.Mode, OutcomeError)
			return nil, err
		}
		v.Suite = res
		v.Success, v.Passed, v.Total = res.Success, res.Passed, res.Total
	default:
		return nil, fmt.Errorf("unknown grading plan %T", plan)
	}

	g.observe(v.Mode, v.Outcome())
	g.logger.Info("graded assignment",
		"assignment_id", a.ID,
		"mode", v.Mode,
		"passed", v.Passed,
		"total", v.Total)
	return v, nil
}

// GradeByID loads the assignment and grades code against it.
func (g *Grader) GradeByID(ctx context.Context, assignmentID int64, code string) (*Verdict, error) {
	a, err := g.assignments.Assignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	return g.Grade(ctx, a, code)
}

// RunByID loads the assignment and runs code once.
func (g *Grader) RunByID(ctx context.Context, assignmentID int64, code, stdin string) (*RunResult, error) {
	a, err := g.assignments.Assignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	return g.Run(ctx, a, code, stdin)
}

// Run executes code once against an already loaded assignment.
func (g *Grader) Run(ctx context.Context, a *domain.Assignment, code, stdin string) (*RunResult, error) {
	return g.runner.Run(ctx, a, code, stdin)
}

func (g *Grader) observe(mode domain.GradingMode, outcome string) {
	if g.observer != nil {
		g.observer.ObserveVerdict(string(mode), outcome)
	}
}
