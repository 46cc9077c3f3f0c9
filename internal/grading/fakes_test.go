package grading

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/judge"
)

// stubJudge answers submissions with a scripted function and records them.
type stubJudge struct {
	mu          sync.Mutex
	submissions []judge.Submission
	fn          func(sub *judge.Submission) (*judge.Result, error)
}

func (s *stubJudge) Submit(_ context.Context, sub *judge.Submission, wait bool) (*judge.Result, error) {
	if !wait {
		panic("grading must always wait for a terminal result")
	}
	s.mu.Lock()
	s.submissions = append(s.submissions, *sub)
	s.mu.Unlock()
	return s.fn(sub)
}

func (s *stubJudge) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions)
}

// echoJudge accepts every run and prints the given stdout.
func echoJudge(stdout string) *stubJudge {
	return &stubJudge{fn: func(*judge.Submission) (*judge.Result, error) {
		return &judge.Result{Stdout: stdout, Status: judge.NewStatus(judge.StatusAccepted)}, nil
	}}
}

type memAssets map[string][]byte

func (m memAssets) Read(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("asset %s missing", name)
	}
	return data, nil
}

type memAssignments map[int64]*domain.Assignment

func (m memAssignments) Assignment(_ context.Context, id int64) (*domain.Assignment, error) {
	a, ok := m[id]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	return a, nil
}

func (m memAssignments) LessonAssignments(_ context.Context, lessonID int64) ([]*domain.Assignment, error) {
	var out []*domain.Assignment
	for _, a := range m {
		if a.LessonID == lessonID {
			out = append(out, a)
		}
	}
	return out, nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveVerdict(mode, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[mode+"/"+outcome]++
}

const junitReport = "\x1b[36m╷\x1b[0m\n" +
	"├─ JUnit Jupiter \x1b[32m✔\x1b[0m\n" +
	"│  └─ MainTest \x1b[32m✔\x1b[0m\n" +
	"│     ├─ testAdd() \x1b[32m✔\x1b[0m\n" +
	"│     └─ testSub() \x1b[31m✘\x1b[0m \x1b[31mexpected: <5> but was: <4>\x1b[0m\n" +
	"└─ JUnit Vintage \x1b[32m✔\x1b[0m\n"
