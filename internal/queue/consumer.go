package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobHandler processes grading jobs
type JobHandler func(ctx context.Context, job *GradeJob) (*GradeResult, error)

// resultPublisher is the part of Producer the consumer needs.
type resultPublisher interface {
	PublishResult(ctx context.Context, result *GradeResult) error
}

// Consumer runs a pool of workers over the job queue. Each delivery is acked
// only after its result is published, so a crashed worker's job is redelivered.
type Consumer struct {
	conn      *Connection
	handler   JobHandler
	results   resultPublisher
	workers   int
	prefetch  int
	timeout   time.Duration
	retryable func(error) bool
	logger    *slog.Logger
	mu        sync.Mutex
	stopped   bool
	active    atomic.Int32
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int           // concurrent workers
	Prefetch int           // unacked deliveries per worker
	Timeout  time.Duration // per-job timeout unless the job sets its own
	// Retryable marks handler errors worth one more delivery, such as a judge
	// outage. A job that fails again after redelivery gets a failed result.
	Retryable func(error) bool
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{}.withDefaults()
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Retryable == nil {
		cfg.Retryable = func(error) bool { return false }
	}
	return cfg
}

// NewConsumer creates a new queue consumer
func NewConsumer(conn *Connection, handler JobHandler, cfg ConsumerConfig) *Consumer {
	cfg = cfg.withDefaults()

	return &Consumer{
		conn:      conn,
		handler:   handler,
		results:   NewProducer(conn),
		workers:   cfg.Workers,
		prefetch:  cfg.Prefetch,
		timeout:   cfg.Timeout,
		retryable: cfg.Retryable,
		logger:    conn.logger,
	}
}

// Start begins consuming messages. After a broker reconnect the workers are
// restarted on the new channel.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	if err := c.subscribe(ctx, c.conn.Channel()); err != nil {
		return err
	}
	c.conn.OnReconnect(func(ch *amqp.Channel) error {
		return c.subscribe(ctx, ch)
	})
	return nil
}

func (c *Consumer) subscribe(ctx context.Context, ch *amqp.Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || ctx.Err() != nil {
		return nil
	}

	if err := ch.Qos(c.prefetch*c.workers, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	// Manual acks: a job leaves the queue only once its result is out
	msgs, err := ch.Consume(JobQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", JobQueueName, err)
	}

	c.logger.Info("starting grading consumer", "workers", c.workers, "prefetch", c.prefetch)
	c.startWorkers(ctx, msgs)
	return nil
}

func (c *Consumer) startWorkers(ctx context.Context, msgs <-chan amqp.Delivery) {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		c.active.Add(1)
		go c.worker(ctx, i, msgs)
	}
}

// Running reports whether any worker is consuming jobs.
func (c *Consumer) Running() bool {
	return c.active.Load() > 0
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()
	defer c.active.Add(-1)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info("job channel closed", "worker_id", id)
				return
			}
			c.processMessage(ctx, id, msg)
		}
	}
}

// processMessage decodes, grades and settles one delivery.
func (c *Consumer) processMessage(ctx context.Context, workerID int, msg amqp.Delivery) {
	var job GradeJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		c.logger.Error("dropping malformed job", "worker_id", workerID, "error", err)
		_ = msg.Reject(false)
		return
	}

	log := c.logger.With(
		"worker_id", workerID,
		"job_id", job.ID,
		"assignment_id", job.AssignmentID,
		"kind", job.Kind,
	)
	log.Info("processing grading job", "user_id", job.UserID, "redelivered", msg.Redelivered)

	result, err := c.run(ctx, &job)
	if err != nil && !msg.Redelivered && c.retryable(err) {
		log.Warn("requeueing job after transient failure", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if err != nil {
		log.Error("job failed", "error", err, "duration", result.Duration)
	} else {
		log.Info("job completed", "status", result.Status, "duration", result.Duration)
	}

	if err := c.results.PublishResult(ctx, result); err != nil {
		// Leave the job unacked so another worker picks it up
		log.Error("publish result", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Error("ack job", "error", err)
	}
}

// run invokes the handler under the job's timeout. The returned result is
// always complete, even when err is set.
func (c *Consumer) run(ctx context.Context, job *GradeJob) (*GradeResult, error) {
	timeout := c.timeout
	if job.TimeoutSeconds > 0 {
		timeout = time.Duration(job.TimeoutSeconds) * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := c.handler(jobCtx, job)
	switch {
	case err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		result = &GradeResult{Status: StatusTimeout, Error: "grading timed out"}
	case err != nil:
		result = &GradeResult{Status: StatusFailed, Error: err.Error()}
	case result.Status == "":
		result.Status = StatusCompleted
	}

	result.JobID = job.ID
	result.UserID = job.UserID
	result.AssignmentID = job.AssignmentID
	result.Duration = time.Since(start)
	result.CompletedAt = time.Now()
	return result, err
}

// Stop cancels the workers and waits for in-flight jobs to settle.
func (c *Consumer) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("consumer stopped")
}
