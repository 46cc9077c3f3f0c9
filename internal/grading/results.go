// Package grading runs learner code through a judge and reduces the judge's
// answers into verdicts.
package grading

import "github.com/felixgeelhaar/syllabus/internal/domain"

// RunResult is the observable outcome of a single "try it" execution.
type RunResult struct {
	Success bool    `json:"success"`
	Output  string  `json:"output"`
	Error   string  `json:"error"`
	Time    float64 `json:"time"`
	Memory  int     `json:"memory"`
	Status  string  `json:"status"`
}

// CaseResult is the verdict for one stdin/expected-output test case.
type CaseResult struct {
	TestCaseID int64  `json:"test_case_id"`
	Passed     bool   `json:"passed"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
	Error      string `json:"error"`
	Status     string `json:"status"`
}

// SubmitResult aggregates the test cases of a simple-mode submission.
type SubmitResult struct {
	Success bool         `json:"success"`
	Passed  int          `json:"passed"`
	Total   int          `json:"total"`
	Results []CaseResult `json:"results"`
}

// Test outcome statuses.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

// TestOutcome is one test reported by a harness run.
type TestOutcome struct {
	Test    string `json:"test"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TestSuiteResult is the outcome of a multi-file harness run.
type TestSuiteResult struct {
	Success   bool          `json:"success"`
	Passed    int           `json:"passed"`
	Total     int           `json:"total"`
	Results   []TestOutcome `json:"results"`
	RawOutput string        `json:"raw_output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Verdict is the grading outcome for an assignment in either mode.
type Verdict struct {
	AssignmentID int64              `json:"assignment_id"`
	Mode         domain.GradingMode `json:"mode"`
	Success      bool               `json:"success"`
	Passed       int                `json:"passed"`
	Total        int                `json:"total"`
	Submit       *SubmitResult      `json:"submit,omitempty"`
	Suite        *TestSuiteResult   `json:"suite,omitempty"`
}

// Outcome names the verdict for metrics.
func (v *Verdict) Outcome() string {
	if v.Success {
		return OutcomePassed
	}
	return OutcomeFailed
}
