package grading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/judge"
)

// RunService executes code once without a correctness verdict.
type RunService struct {
	judge  judge.Client
	logger *slog.Logger
}

// NewRunService creates a run service.
func NewRunService(client judge.Client, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{judge: client, logger: logger}
}

// Run submits code in the assignment's language and returns the raw outcome.
func (s *RunService) Run(ctx context.Context, a *domain.Assignment, code, stdin string) (*RunResult, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: assignment is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrEmptyCode
	}

	res, err := s.judge.Submit(ctx, &judge.Submission{
		LanguageID: judge.LanguageID(a.Language),
		SourceCode: code,
		Stdin:      stdin,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("run assignment %d: %w", a.ID, err)
	}

	return &RunResult{
		Success: res.IsSuccess(),
		Output:  res.Stdout,
		Error:   errorText(res),
		Time:    res.Time,
		Memory:  res.Memory,
		Status:  res.Status.Description,
	}, nil
}

// errorText picks the most specific diagnostic the judge returned.
func errorText(res *judge.Result) string {
	for _, s := range []string{res.Stderr, res.CompileOutput, res.Message} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
