package judge

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives one sample per judge call.
type Observer interface {
	ObserveJudge(languageID int, status string, d time.Duration, err error)
}

// Instrumented reports judge calls to an Observer and the log.
type Instrumented struct {
	client   Client
	observer Observer
	logger   *slog.Logger
}

// NewInstrumented wraps client.
func NewInstrumented(client Client, observer Observer, logger *slog.Logger) *Instrumented {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{client: client, observer: observer, logger: logger}
}

func (i *Instrumented) Submit(ctx context.Context, sub *Submission, wait bool) (*Result, error) {
	start := time.Now()
	res, err := i.client.Submit(ctx, sub, wait)
	elapsed := time.Since(start)

	status := ""
	if res != nil {
		status = res.Status.Description
	}
	if i.observer != nil {
		i.observer.ObserveJudge(sub.LanguageID, status, elapsed, err)
	}

	if err != nil {
		i.logger.Warn("judge call failed",
			"language_id", sub.LanguageID,
			"duration", elapsed,
			"error", err)
		return nil, err
	}
	i.logger.Debug("judge call",
		"language_id", sub.LanguageID,
		"status", status,
		"duration", elapsed)
	return res, nil
}
