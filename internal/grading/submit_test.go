package grading

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/judge"
)

func TestSubmitService_NoTestCases(t *testing.T) {
	stub := echoJudge("")
	svc := NewSubmitService(stub, 2, nil)

	for _, code := range []string{"print(1)", ""} {
		got, err := svc.Submit(context.Background(), &domain.Assignment{Language: "python"}, code)
		if err != nil {
			t.Fatalf("Submit(%q) error = %v", code, err)
		}
		if got.Success || got.Passed != 0 || got.Total != 0 {
			t.Errorf("Submit(%q) = %+v; want {false 0 0}", code, got)
		}
	}
	if stub.calls() != 0 {
		t.Errorf("judge called %d times; want 0", stub.calls())
	}
}

func TestSubmitService_HarnessCasesIgnored(t *testing.T) {
	stub := echoJudge("")
	svc := NewSubmitService(stub, 2, nil)

	a := &domain.Assignment{Language: "java", TestCases: []domain.TestCase{{ID: 1, HarnessFile: "class MainTest {}"}}}
	got, err := svc.Submit(context.Background(), a, "class Main {}")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got.Total != 0 || stub.calls() != 0 {
		t.Errorf("Total=%d calls=%d; want 0, 0", got.Total, stub.calls())
	}
}

func TestSubmitService_OutputComparison(t *testing.T) {
	tests := []struct {
		name     string
		stdout   string
		status   int
		expected string
		want     bool
	}{
		{"exact", "42", judge.StatusAccepted, "42", true},
		{"surrounding whitespace", "  42\n\n", judge.StatusAccepted, "\n42 ", true},
		{"internal whitespace differs", "4 2", judge.StatusAccepted, "4  2", false},
		{"different output", "41", judge.StatusAccepted, "42", false},
		{"judge rejected", "42", judge.StatusWrongAnswer, "42", false},
		{"runtime error", "42", judge.StatusRuntimeNZEC, "42", false},
		{"multi-line", "a\nb\n", judge.StatusAccepted, "a\nb", true},
		{"case sensitive", "Yes", judge.StatusAccepted, "yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubJudge{fn: func(*judge.Submission) (*judge.Result, error) {
				return &judge.Result{Stdout: tt.stdout, Status: judge.NewStatus(tt.status)}, nil
			}}
			svc := NewSubmitService(stub, 1, nil)

			a := &domain.Assignment{Language: "python", TestCases: []domain.TestCase{{ID: 7, ExpectedOutput: tt.expected}}}
			got, err := svc.Submit(context.Background(), a, "print(42)")
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if got.Results[0].Passed != tt.want || got.Success != tt.want {
				t.Errorf("passed=%v success=%v; want %v", got.Results[0].Passed, got.Success, tt.want)
			}
			if got.Results[0].Expected != tt.expected || got.Results[0].Actual != tt.stdout {
				t.Errorf("expected/actual = %q/%q", got.Results[0].Expected, got.Results[0].Actual)
			}
		})
	}
}

func TestSubmitService_AllCasesRunInOrder(t *testing.T) {
	// Later cases answer sooner, so completion order differs from case order.
	stub := &stubJudge{fn: func(sub *judge.Submission) (*judge.Result, error) {
		n, _ := strconv.Atoi(sub.Stdin)
		time.Sleep(time.Duration(10-n) * time.Millisecond)
		out := sub.Stdin
		if n%3 == 0 {
			out = "wrong"
		}
		return &judge.Result{Stdout: out, Stderr: "", Status: judge.NewStatus(judge.StatusAccepted)}, nil
	}}
	svc := NewSubmitService(stub, 4, nil)

	var cases []domain.TestCase
	for i := 1; i <= 9; i++ {
		s := strconv.Itoa(i)
		cases = append(cases, domain.TestCase{ID: int64(100 + i), Stdin: s, ExpectedOutput: s})
	}

	got, err := svc.Submit(context.Background(), &domain.Assignment{Language: "python", TestCases: cases}, "print(input())")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if stub.calls() != 9 {
		t.Errorf("judge calls = %d; want 9", stub.calls())
	}
	if got.Total != 9 || got.Passed != 6 || got.Success {
		t.Errorf("got passed=%d total=%d success=%v; want 6, 9, false", got.Passed, got.Total, got.Success)
	}

	passed := 0
	for i, r := range got.Results {
		if r.TestCaseID != int64(101+i) {
			t.Errorf("results[%d].TestCaseID = %d; want %d", i, r.TestCaseID, 101+i)
		}
		if r.Passed {
			passed++
		}
		if wantPass := (i+1)%3 != 0; r.Passed != wantPass {
			t.Errorf("results[%d].Passed = %v; want %v", i, r.Passed, wantPass)
		}
	}
	if passed != got.Passed {
		t.Errorf("Passed = %d but %d entries passed", got.Passed, passed)
	}
}

func TestSubmitService_AllPassed(t *testing.T) {
	svc := NewSubmitService(echoJudge("ok\n"), 0, nil)
	a := &domain.Assignment{Language: "ruby", TestCases: []domain.TestCase{
		{ID: 1, ExpectedOutput: "ok"},
		{ID: 2, ExpectedOutput: "ok"},
	}}

	got, err := svc.Submit(context.Background(), a, "puts 'ok'")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !got.Success || got.Passed != 2 || got.Total != 2 {
		t.Errorf("got %+v; want success 2/2", got)
	}
}

func TestSubmitService_Errors(t *testing.T) {
	t.Run("empty code", func(t *testing.T) {
		stub := echoJudge("")
		svc := NewSubmitService(stub, 1, nil)
		a := &domain.Assignment{Language: "python", TestCases: []domain.TestCase{{ID: 1}}}

		if _, err := svc.Submit(context.Background(), a, " "); !errors.Is(err, domain.ErrEmptyCode) {
			t.Errorf("error = %v; want ErrEmptyCode", err)
		}
		if stub.calls() != 0 {
			t.Errorf("judge called %d times", stub.calls())
		}
	})

	t.Run("transport", func(t *testing.T) {
		stub := &stubJudge{fn: func(*judge.Submission) (*judge.Result, error) {
			return nil, fmt.Errorf("%w: timeout", judge.ErrTransport)
		}}
		svc := NewSubmitService(stub, 1, nil)
		a := &domain.Assignment{Language: "python", TestCases: []domain.TestCase{{ID: 1}, {ID: 2}}}

		if _, err := svc.Submit(context.Background(), a, "print(1)"); !errors.Is(err, judge.ErrTransport) {
			t.Errorf("error = %v; want ErrTransport", err)
		}
	})
}
