package domain

import "strings"

// Assignment is a gradable coding exercise attached to a lesson.
type Assignment struct {
	ID           int64      `json:"id"`
	LessonID     int64      `json:"lesson_id"`
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Instructions string     `json:"instructions"`
	StarterCode  string     `json:"starter_code"`
	Solution     string     `json:"solution,omitempty"`
	Language     string     `json:"language"`
	TestCases    []TestCase `json:"test_cases,omitempty"`
}

// TestCase is one grading scenario. It is either a stdin/expected-stdout pair
// or a test harness source file plus its class name.
type TestCase struct {
	ID             int64  `json:"id"`
	AssignmentID   int64  `json:"assignment_id"`
	Stdin          string `json:"stdin,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	HarnessFile    string `json:"harness_file,omitempty"`
	ClassName      string `json:"class_name,omitempty"`
}

// IsHarness reports whether the case carries a structural test harness.
func (t TestCase) IsHarness() bool {
	return t.HarnessFile != ""
}

// GradingMode names how an assignment is graded.
type GradingMode string

const (
	ModeSimple    GradingMode = "simple"
	ModeMultiFile GradingMode = "multi_file"
)

// GradingPlan is the grading variant selected for an assignment.
// Implementations are SimplePlan and MultiFilePlan.
type GradingPlan interface {
	Mode() GradingMode
}

// SimplePlan grades by comparing program output per test case.
type SimplePlan struct {
	TestCases []TestCase
}

func (SimplePlan) Mode() GradingMode { return ModeSimple }

// MultiFilePlan grades by running a JUnit harness against the submission.
type MultiFilePlan struct {
	Harness TestCase
}

func (MultiFilePlan) Mode() GradingMode { return ModeMultiFile }

var harnessLanguages = map[string]bool{
	"java": true,
}

// UsesHarness reports whether a language is graded with a test harness.
func UsesHarness(language string) bool {
	return harnessLanguages[strings.ToLower(strings.TrimSpace(language))]
}

// Plan selects the grading variant from the assignment language.
// Harness languages use the first harness test case; if none exists the
// assignment falls back to output comparison.
func (a *Assignment) Plan() GradingPlan {
	if UsesHarness(a.Language) {
		for _, tc := range a.TestCases {
			if tc.IsHarness() {
				return MultiFilePlan{Harness: tc}
			}
		}
	}

	cases := make([]TestCase, 0, len(a.TestCases))
	for _, tc := range a.TestCases {
		if !tc.IsHarness() {
			cases = append(cases, tc)
		}
	}
	return SimplePlan{TestCases: cases}
}
