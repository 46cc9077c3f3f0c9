package queue

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/syllabus/internal/grading"
)

// NewGradingHandler returns a JobHandler backed by a grader.
func NewGradingHandler(g *grading.Grader) JobHandler {
	return func(ctx context.Context, job *GradeJob) (*GradeResult, error) {
		switch job.Kind {
		case KindRun:
			run, err := g.RunByID(ctx, job.AssignmentID, job.Code, job.Stdin)
			if err != nil {
				return nil, err
			}
			return &GradeResult{Run: run}, nil
		case KindGrade, "":
			verdict, err := g.GradeByID(ctx, job.AssignmentID, job.Code)
			if err != nil {
				return nil, err
			}
			return &GradeResult{Verdict: verdict}, nil
		default:
			return nil, fmt.Errorf("unknown job kind %q", job.Kind)
		}
	}
}
