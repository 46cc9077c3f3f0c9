package grading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/judge"
)

// AssetReader loads bundled files such as the JUnit runner jar.
type AssetReader interface {
	Read(name string) ([]byte, error)
}

// MultiFileService grades code against a JUnit harness.
type MultiFileService struct {
	judge  judge.Client
	assets AssetReader
	parser ReportParser
	logger *slog.Logger
}

// NewMultiFileService creates the service. A nil parser uses JUnitTreeParser.
func NewMultiFileService(client judge.Client, assets AssetReader, parser ReportParser, logger *slog.Logger) *MultiFileService {
	if parser == nil {
		parser = JUnitTreeParser{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiFileService{judge: client, assets: assets, parser: parser, logger: logger}
}

// Execute runs the harness against code. Compile failures and crashes are
// results, not errors.
func (s *MultiFileService) Execute(ctx context.Context, code string, test domain.TestCase) (*TestSuiteResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrEmptyCode
	}
	if !test.IsHarness() {
		return nil, domain.ErrMissingHarness
	}

	runner, err := s.assets.Read(RunnerAsset)
	if err != nil {
		return nil, fmt.Errorf("load test runner: %w", err)
	}
	bundle, err := BuildBundle(code, test, runner)
	if err != nil {
		return nil, err
	}

	res, err := s.judge.Submit(ctx, &judge.Submission{
		LanguageID:      judge.MultiFileLanguageID,
		AdditionalFiles: bundle,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("run harness for test case %d: %w", test.ID, err)
	}

	if !res.IsSuccess() {
		msg := executionMessage(res)
		s.logger.Debug("harness execution failed",
			"test_case_id", test.ID,
			"status", res.Status.Description)
		return &TestSuiteResult{
			Success:   false,
			Passed:    0,
			Total:     1,
			Results:   []TestOutcome{{Test: "Execution", Status: OutcomeError, Message: msg}},
			RawOutput: res.Stdout,
			Error:     msg,
		}, nil
	}

	return summarize(s.parser.ParseReport(res.Stdout), res.Stdout), nil
}

// executionMessage prefers stderr, then compiler output, then the status.
func executionMessage(res *judge.Result) string {
	for _, s := range []string{res.Stderr, res.CompileOutput} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return res.Status.Description
}

// summarize succeeds only with no failures and at least one pass.
func summarize(outcomes []TestOutcome, raw string) *TestSuiteResult {
	out := &TestSuiteResult{
		Results:   outcomes,
		Total:     len(outcomes),
		RawOutput: raw,
	}
	failed := 0
	for _, o := range outcomes {
		switch o.Status {
		case OutcomePassed:
			out.Passed++
		default:
			failed++
		}
	}
	out.Success = failed == 0 && out.Passed > 0
	return out
}
