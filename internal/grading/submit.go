package grading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/judge"
)

// DefaultConcurrency bounds parallel judge calls per submission.
const DefaultConcurrency = 4

// SubmitService grades code against stdin/expected-output test cases.
type SubmitService struct {
	judge       judge.Client
	concurrency int
	logger      *slog.Logger
}

// NewSubmitService creates a submit service. concurrency <= 0 uses
// DefaultConcurrency.
func NewSubmitService(client judge.Client, concurrency int, logger *slog.Logger) *SubmitService {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitService{judge: client, concurrency: concurrency, logger: logger}
}

// Submit grades code against every output-comparison test case of the
// assignment.
func (s *SubmitService) Submit(ctx context.Context, a *domain.Assignment, code string) (*SubmitResult, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: assignment is required", domain.ErrInvalidInput)
	}
	var cases []domain.TestCase
	for _, tc := range a.TestCases {
		if !tc.IsHarness() {
			cases = append(cases, tc)
		}
	}
	return s.Grade(ctx, a.Language, code, cases)
}

// Grade runs every case, all of them even after a failure, and returns
// results in case order.
func (s *SubmitService) Grade(ctx context.Context, language, code string, cases []domain.TestCase) (*SubmitResult, error) {
	if len(cases) == 0 {
		return &SubmitResult{Success: false, Passed: 0, Total: 0, Results: []CaseResult{}}, nil
	}
	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrEmptyCode
	}

	languageID := judge.LanguageID(language)
	results := make([]CaseResult, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, tc := range cases {
		g.Go(func() error {
			res, err := s.judge.Submit(gctx, &judge.Submission{
				LanguageID:     languageID,
				SourceCode:     code,
				Stdin:          tc.Stdin,
				ExpectedOutput: tc.ExpectedOutput,
			}, true)
			if err != nil {
				return fmt.Errorf("grade test case %d: %w", tc.ID, err)
			}
			results[i] = gradeCase(tc, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &SubmitResult{Total: len(results), Results: results}
	for _, r := range results {
		if r.Passed {
			out.Passed++
		}
	}
	out.Success = out.Passed == out.Total

	s.logger.Debug("graded submission",
		"language_id", languageID,
		"passed", out.Passed,
		"total", out.Total)
	return out, nil
}

// gradeCase passes a case when the judge accepted the run and the output
// matches after trimming surrounding whitespace.
func gradeCase(tc domain.TestCase, res *judge.Result) CaseResult {
	passed := res.IsSuccess() &&
		strings.TrimSpace(res.Stdout) == strings.TrimSpace(tc.ExpectedOutput)

	return CaseResult{
		TestCaseID: tc.ID,
		Passed:     passed,
		Expected:   tc.ExpectedOutput,
		Actual:     res.Stdout,
		Error:      errorText(res),
		Status:     res.Status.Description,
	}
}
