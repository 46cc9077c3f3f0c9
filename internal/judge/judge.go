// Package judge talks to the sandboxed code-execution service that compiles
// and runs submissions. The wire format follows Judge0; a Docker backend
// implements the same contract for local development.
package judge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Client submits code to a judge.
type Client interface {
	// Submit sends a submission. With wait set it blocks until the judge
	// reports a terminal status; otherwise it may return a pending result
	// carrying only a token.
	Submit(ctx context.Context, sub *Submission, wait bool) (*Result, error)
}

// Submission is one program to compile and run.
type Submission struct {
	LanguageID     int
	SourceCode     string
	Stdin          string
	ExpectedOutput string
	// AdditionalFiles is a zip archive, used by multi-file submissions.
	AdditionalFiles []byte
}

// Status is the judge's verdict for a submission.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Judge status ids.
const (
	StatusInQueue           = 1
	StatusProcessing        = 2
	StatusAccepted          = 3
	StatusWrongAnswer       = 4
	StatusTimeLimitExceeded = 5
	StatusCompilationError  = 6
	StatusRuntimeSIGSEGV    = 7
	StatusRuntimeSIGXFSZ    = 8
	StatusRuntimeSIGFPE     = 9
	StatusRuntimeSIGABRT    = 10
	StatusRuntimeNZEC       = 11
	StatusRuntimeOther      = 12
	StatusInternalError     = 13
	StatusExecFormatError   = 14
)

var statusDescriptions = map[int]string{
	StatusInQueue:           "In Queue",
	StatusProcessing:        "Processing",
	StatusAccepted:          "Accepted",
	StatusWrongAnswer:       "Wrong Answer",
	StatusTimeLimitExceeded: "Time Limit Exceeded",
	StatusCompilationError:  "Compilation Error",
	StatusRuntimeSIGSEGV:    "Runtime Error (SIGSEGV)",
	StatusRuntimeSIGXFSZ:    "Runtime Error (SIGXFSZ)",
	StatusRuntimeSIGFPE:     "Runtime Error (SIGFPE)",
	StatusRuntimeSIGABRT:    "Runtime Error (SIGABRT)",
	StatusRuntimeNZEC:       "Runtime Error (NZEC)",
	StatusRuntimeOther:      "Runtime Error (Other)",
	StatusInternalError:     "Internal Error",
	StatusExecFormatError:   "Exec Format Error",
}

// NewStatus builds a status with the judge's standard description.
func NewStatus(id int) Status {
	return Status{ID: id, Description: statusDescriptions[id]}
}

// Terminal reports whether the judge has finished with the submission.
func (s Status) Terminal() bool {
	return s.ID != 0 && s.ID != StatusInQueue && s.ID != StatusProcessing
}

// Result is the judge's outcome for a submission.
type Result struct {
	Token         string  `json:"token,omitempty"`
	Stdout        string  `json:"stdout"`
	Stderr        string  `json:"stderr"`
	CompileOutput string  `json:"compile_output"`
	Message       string  `json:"message,omitempty"`
	Time          float64 `json:"time"`   // seconds
	Memory        int     `json:"memory"` // kilobytes
	Status        Status  `json:"status"`
}

// IsSuccess reports whether the program ran and was accepted.
func (r *Result) IsSuccess() bool {
	return r != nil && r.Status.ID == StatusAccepted
}

// ErrTransport marks failures reaching the judge, including cancellation
// and deadline expiry of the caller's context.
var ErrTransport = errors.New("judge transport error")

// HTTPError is a non-2xx reply from the judge.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("judge returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("judge returned status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	return errors.Is(err, ErrTransport)
}
