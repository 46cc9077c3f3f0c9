package judge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// stubClient is a scripted judge used across tests.
type stubClient struct {
	mu    sync.Mutex
	calls int
	fn    func(sub *Submission) (*Result, error)
}

func (s *stubClient) Submit(_ context.Context, sub *Submission, _ bool) (*Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(sub)
}

func (s *stubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestResilient_PassesThrough(t *testing.T) {
	stub := &stubClient{fn: func(*Submission) (*Result, error) {
		return &Result{Stdout: "ok", Status: NewStatus(StatusAccepted)}, nil
	}}
	r := NewResilient(stub, DefaultResilientConfig())
	defer r.Close()

	res, err := r.Submit(context.Background(), &Submission{LanguageID: 71}, true)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Stdout != "ok" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
}

func TestResilient_DoesNotRetryByDefault(t *testing.T) {
	stub := &stubClient{fn: func(*Submission) (*Result, error) {
		return nil, fmt.Errorf("%w: connection reset", ErrTransport)
	}}
	cfg := DefaultResilientConfig()
	cfg.EnableRateLimit = false
	r := NewResilient(stub, cfg)
	defer r.Close()

	_, err := r.Submit(context.Background(), &Submission{LanguageID: 71}, true)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v; want ErrTransport", err)
	}
	if stub.Calls() != 1 {
		t.Errorf("calls = %d; want 1", stub.Calls())
	}
}

func TestResilient_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubClient{fn: func(*Submission) (*Result, error) {
		return nil, &HTTPError{StatusCode: 500}
	}}
	r := NewResilient(stub, ResilientConfig{EnableCircuitBreaker: true})
	defer r.Close()

	for i := 0; i < 8; i++ {
		if _, err := r.Submit(context.Background(), &Submission{LanguageID: 71}, true); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if stub.Calls() != 5 {
		t.Errorf("calls reaching the judge = %d; want 5", stub.Calls())
	}

	_, err := r.Submit(context.Background(), &Submission{LanguageID: 71}, true)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("open circuit error = %v; want ErrTransport", err)
	}
}

func TestResilient_RetryWhenEnabled(t *testing.T) {
	stub := &stubClient{}
	stub.fn = func(*Submission) (*Result, error) {
		if stub.calls < 2 {
			return nil, &HTTPError{StatusCode: 503}
		}
		return &Result{Status: NewStatus(StatusAccepted)}, nil
	}
	r := NewResilient(stub, ResilientConfig{EnableRetry: true})
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := r.Submit(ctx, &Submission{LanguageID: 71}, true)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.IsSuccess() || stub.Calls() != 2 {
		t.Errorf("success=%v calls=%d; want true, 2", res.IsSuccess(), stub.Calls())
	}
}

func TestResilient_RateLimit(t *testing.T) {
	stub := &stubClient{fn: func(*Submission) (*Result, error) {
		return &Result{Status: NewStatus(StatusAccepted)}, nil
	}}
	r := NewResilient(stub, ResilientConfig{EnableRateLimit: true, RatePerSecond: 1})
	defer r.Close()

	limited := 0
	for i := 0; i < 10; i++ {
		if _, err := r.Submit(context.Background(), &Submission{LanguageID: 71}, true); errors.Is(err, ErrRateLimited) {
			limited++
		}
	}
	if limited == 0 {
		t.Error("expected some submissions to be rate limited")
	}
	if stub.Calls()+limited != 10 {
		t.Errorf("calls %d + limited %d != 10", stub.Calls(), limited)
	}
}

func TestResilient_BulkheadFullIsRateLimited(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	stub := &stubClient{fn: func(*Submission) (*Result, error) {
		<-release
		return &Result{Status: NewStatus(StatusAccepted)}, nil
	}}
	r := NewResilient(stub, ResilientConfig{
		EnableCircuitBreaker: true,
		EnableBulkhead:       true,
		MaxConcurrent:        1,
	})
	defer r.Close()
	defer once.Do(func() { close(release) })

	// One call runs and four queue; the rest are rejected
	const calls = 10
	errs := make(chan error, calls)
	for i := 0; i < calls; i++ {
		go func() {
			_, err := r.Submit(context.Background(), &Submission{LanguageID: 71}, true)
			errs <- err
		}()
	}

	rejected := 0
	for rejected < calls-5 {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrRateLimited) {
				t.Fatalf("saturated error = %v; want ErrRateLimited", err)
			}
			if errors.Is(err, ErrTransport) {
				t.Errorf("saturated error %v also reports a transport failure", err)
			}
			rejected++
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d calls rejected", rejected, calls-5)
		}
	}

	once.Do(func() { close(release) })
	for i := 0; i < 5; i++ {
		if err := <-errs; err != nil {
			t.Errorf("admitted call error = %v", err)
		}
	}

	// Rejections must not count against the judge
	if _, err := r.Submit(context.Background(), &Submission{LanguageID: 71}, true); err != nil {
		t.Errorf("Submit() after saturation error = %v; want the breaker still closed", err)
	}
}
