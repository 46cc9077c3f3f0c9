package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ferrors"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ErrRateLimited is returned when local throttling rejects a submission: the
// rate limit is exhausted or the bulkhead and its queue are full.
var ErrRateLimited = errors.New("judge rate limit exceeded")

// Resilient wraps a judge client with resilience patterns from fortify.
type Resilient struct {
	client         Client
	circuitBreaker circuitbreaker.CircuitBreaker[*Result]
	retrier        retry.Retry[*Result]
	bulkhead       bulkhead.Bulkhead[*Result]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
}

// ResilientConfig holds configuration for the resilient wrapper.
type ResilientConfig struct {
	// EnableCircuitBreaker stops calling a failing judge for a cool-down period.
	EnableCircuitBreaker bool

	// EnableRetry retries transient failures. Off by default: grading
	// surfaces judge failures to the caller.
	EnableRetry bool

	// EnableBulkhead caps concurrent judge calls.
	EnableBulkhead bool

	// EnableRateLimit throttles submissions.
	EnableRateLimit bool

	// MaxConcurrent for bulkhead (default: 8)
	MaxConcurrent int

	// RatePerSecond for rate limiting (default: 10)
	RatePerSecond int

	Logger *slog.Logger
}

// DefaultResilientConfig returns defaults for judge calls.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          false,
		EnableBulkhead:       true,
		EnableRateLimit:      true,
		MaxConcurrent:        8,
		RatePerSecond:        10,
	}
}

// NewResilient wraps client.
func NewResilient(client Client, cfg ResilientConfig) *Resilient {
	r := &Resilient{
		client: client,
		logger: cfg.Logger,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	if cfg.EnableCircuitBreaker {
		r.circuitBreaker = circuitbreaker.New[*Result](circuitbreaker.Config{
			MaxRequests: 2,
			Interval:    30 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// A full bulkhead is local saturation, not a judge failure
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ferrors.ErrBulkheadFull)
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				r.logger.Warn("judge circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.EnableRetry {
		r.retrier = retry.New[*Result](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   IsRetryable,
		})
	}

	if cfg.EnableBulkhead {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 8
		}
		r.bulkhead = bulkhead.New[*Result](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 4,
			QueueTimeout:  time.Minute,
		})
	}

	if cfg.EnableRateLimit {
		rate := cfg.RatePerSecond
		if rate <= 0 {
			rate = 10
		}
		r.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 2,
			Interval: time.Second,
		})
	}

	return r
}

// Submit applies the configured patterns around the wrapped client.
func (r *Resilient) Submit(ctx context.Context, sub *Submission, wait bool) (*Result, error) {
	if r.rateLimit != nil && !r.rateLimit.Allow(ctx, "judge") {
		return nil, ErrRateLimited
	}

	operation := func(ctx context.Context) (*Result, error) {
		return r.client.Submit(ctx, sub, wait)
	}

	if r.bulkhead != nil {
		operation = func(ctx context.Context) (*Result, error) {
			return r.bulkhead.Execute(ctx, func(ctx context.Context) (*Result, error) {
				return r.client.Submit(ctx, sub, wait)
			})
		}
	}

	var (
		res *Result
		err error
	)
	switch {
	case r.circuitBreaker != nil && r.retrier != nil:
		res, err = r.circuitBreaker.Execute(ctx, func(ctx context.Context) (*Result, error) {
			return r.retrier.Do(ctx, operation)
		})
	case r.circuitBreaker != nil:
		res, err = r.circuitBreaker.Execute(ctx, operation)
	case r.retrier != nil:
		res, err = r.retrier.Do(ctx, operation)
	default:
		res, err = operation(ctx)
	}
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, ferrors.ErrBulkheadFull):
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
	case !errors.Is(err, ErrTransport) && !isHTTPError(err):
		// An open breaker never reached the judge.
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	default:
		return nil, err
	}
}

// Close releases resources held by the wrapper.
func (r *Resilient) Close() error {
	if r.rateLimit != nil {
		return r.rateLimit.Close()
	}
	return nil
}

func isHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}
