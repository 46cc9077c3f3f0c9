package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPConfig configures the Judge0 HTTP client.
type HTTPConfig struct {
	// BaseURL is the judge root, e.g. http://localhost:2358.
	BaseURL string

	// APIKey is sent as X-Auth-Token, or as X-RapidAPI-Key when Host is set.
	APIKey string

	// Host is the RapidAPI host header value.
	Host string

	// PollInterval is the delay between status polls (default: 500ms).
	PollInterval time.Duration

	// Timeout bounds one HTTP exchange with the judge (default: 2m).
	Timeout time.Duration

	// HTTPClient overrides the default transport.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// HTTPClient is a Judge0 client.
type HTTPClient struct {
	baseURL      string
	apiKey       string
	host         string
	pollInterval time.Duration
	http         *http.Client
	logger       *slog.Logger
}

// NewHTTPClient creates a Judge0 client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = newJudgeHTTPClient(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		host:         cfg.Host,
		pollInterval: poll,
		http:         hc,
		logger:       logger,
	}
}

// newJudgeHTTPClient creates an HTTP client for blocking judge calls. With
// wait=true the judge holds the request open until the program finishes.
func newJudgeHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 90 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       32,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

type submissionRequest struct {
	SourceCode      string `json:"source_code"`
	LanguageID      int    `json:"language_id"`
	Stdin           string `json:"stdin,omitempty"`
	ExpectedOutput  string `json:"expected_output,omitempty"`
	AdditionalFiles string `json:"additional_files,omitempty"`
}

type submissionResponse struct {
	Token         string  `json:"token"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
	Status        *Status `json:"status"`
}

// Submit posts a submission. With wait set, a non-terminal reply is polled
// until the judge finishes or ctx is done.
func (c *HTTPClient) Submit(ctx context.Context, sub *Submission, wait bool) (*Result, error) {
	body := submissionRequest{
		SourceCode:     encode(sub.SourceCode),
		LanguageID:     sub.LanguageID,
		Stdin:          encode(sub.Stdin),
		ExpectedOutput: encode(sub.ExpectedOutput),
	}
	if len(sub.AdditionalFiles) > 0 {
		body.AdditionalFiles = base64.StdEncoding.EncodeToString(sub.AdditionalFiles)
	}

	q := url.Values{}
	q.Set("base64_encoded", "true")
	q.Set("wait", strconv.FormatBool(wait))

	var resp submissionResponse
	if err := c.do(ctx, http.MethodPost, "/submissions?"+q.Encode(), body, &resp); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	result, err := resp.result()
	if err != nil {
		return nil, err
	}

	c.logger.Debug("judge submission",
		"language_id", sub.LanguageID,
		"token", result.Token,
		"status", result.Status.Description)

	if wait && !result.Status.Terminal() && result.Token != "" {
		return c.Await(ctx, result.Token)
	}
	return result, nil
}

// Get fetches the current state of a submission.
func (c *HTTPClient) Get(ctx context.Context, token string) (*Result, error) {
	q := url.Values{}
	q.Set("base64_encoded", "true")
	q.Set("fields", "*")

	var resp submissionResponse
	path := "/submissions/" + url.PathEscape(token) + "?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get submission %s: %w", token, err)
	}
	if resp.Token == "" {
		resp.Token = token
	}
	return resp.result()
}

// Await polls a submission until it reaches a terminal status.
func (c *HTTPClient) Await(ctx context.Context, token string) (*Result, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		result, err := c.Get(ctx, token)
		if err != nil {
			return nil, err
		}
		if result.Status.Terminal() {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("await submission %s: %w: %w", token, ErrTransport, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrTransport, err)
	}
	return nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
		req.Header.Set("X-RapidAPI-Host", c.host)
		return
	}
	req.Header.Set("X-Auth-Token", c.apiKey)
}

func (r *submissionResponse) result() (*Result, error) {
	out := &Result{Token: r.Token}

	fields := []struct {
		src *string
		dst *string
		key string
	}{
		{r.Stdout, &out.Stdout, "stdout"},
		{r.Stderr, &out.Stderr, "stderr"},
		{r.CompileOutput, &out.CompileOutput, "compile_output"},
		{r.Message, &out.Message, "message"},
	}
	for _, f := range fields {
		s, err := decode(f.src)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.key, err)
		}
		*f.dst = s
	}

	if r.Time != nil && *r.Time != "" {
		t, err := strconv.ParseFloat(*r.Time, 64)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", *r.Time, err)
		}
		out.Time = t
	}
	if r.Memory != nil {
		out.Memory = *r.Memory
	}
	if r.Status != nil {
		out.Status = *r.Status
	} else {
		// A bare token reply means the submission is queued.
		out.Status = NewStatus(StatusInQueue)
	}
	return out, nil
}

func encode(s string) string {
	if s == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// decode reverses the judge's base64 encoding. The judge wraps long values
// with newlines.
func decode(s *string) (string, error) {
	if s == nil || *s == "" {
		return "", nil
	}
	raw := strings.ReplaceAll(*s, "\n", "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
