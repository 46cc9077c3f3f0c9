package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/syllabus/internal/judge"
	"github.com/felixgeelhaar/syllabus/internal/queue"
)

// Queue is the async grading pipeline: a producer for the API, optional
// in-process workers, and a result consumer backing job lookups.
type Queue struct {
	Producer *queue.Producer
	Workers  *queue.Consumer
	Results  *queue.ResultConsumer

	conn *queue.Connection
}

// StartQueue connects to RabbitMQ and starts consuming. Workers run in this
// process only when runWorkers is set. The app's Handler must be built after
// this call to expose the job endpoints.
func (a *App) StartQueue(ctx context.Context, runWorkers bool) (*Queue, error) {
	cfg := a.Config.Queue

	conn, err := queue.NewConnection(cfg.URL, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	q := &Queue{
		Producer: queue.NewProducer(conn),
		Results:  queue.NewResultConsumer(conn, cfg.ResultCapacity),
		conn:     conn,
	}

	if err := q.Results.Start(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	if runWorkers {
		q.Workers = queue.NewConsumer(conn, queue.NewGradingHandler(a.Grader), queue.ConsumerConfig{
			Workers:   cfg.Workers,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Retryable: retryableJobError,
		})
		if err := q.Workers.Start(ctx); err != nil {
			q.Results.Stop()
			conn.Close()
			return nil, err
		}
	}

	a.queue = q
	a.closers = append(a.closers, q.stop)
	return q, nil
}

// retryableJobError requeues jobs that failed on a judge outage or local
// throttling. A job that ran out of time is not retried.
func retryableJobError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return judge.IsRetryable(err) || errors.Is(err, judge.ErrRateLimited)
}

// ready fails when the broker is gone or a consumer lost its subscription.
func (q *Queue) ready() error {
	switch {
	case !q.conn.IsConnected():
		return errors.New("rabbitmq: not connected")
	case !q.Results.Consuming():
		return errors.New("rabbitmq: result consumer not subscribed")
	case q.Workers != nil && !q.Workers.Running():
		return errors.New("rabbitmq: grading workers not running")
	}
	return nil
}

func (q *Queue) stop() error {
	if q.Workers != nil {
		q.Workers.Stop()
	}
	q.Results.Stop()
	return q.conn.Close()
}
