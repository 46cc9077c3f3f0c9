// Package queue moves grading work through RabbitMQ: the API publishes
// jobs, workers grade them, and results fan out to every API replica.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/syllabus/internal/grading"
)

// Broker names. Jobs share one durable work queue; results go to a fanout
// exchange so each replica binds its own queue and sees every result.
const (
	JobQueueName       = "syllabus.grading"
	ResultExchangeName = "syllabus.results"
)

// Message TTLs in milliseconds.
const (
	jobTTL    int32 = 600000 // jobs wait behind slow judges
	resultTTL int32 = 300000
)

// JobKind selects what a worker does with the code.
type JobKind string

const (
	KindGrade JobKind = "grade"
	KindRun   JobKind = "run"
)

// Job statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
)

// GradeJob is a grading or run request waiting for a worker.
type GradeJob struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	AssignmentID   int64     `json:"assignment_id"`
	Kind           JobKind   `json:"kind"`
	Code           string    `json:"code"`
	Stdin          string    `json:"stdin,omitempty"`
	TimeoutSeconds int       `json:"timeout_seconds,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// GradeResult is the worker's answer to a GradeJob.
type GradeResult struct {
	JobID        uuid.UUID          `json:"job_id"`
	UserID       uuid.UUID          `json:"user_id"`
	AssignmentID int64              `json:"assignment_id"`
	Status       string             `json:"status"`
	Verdict      *grading.Verdict   `json:"verdict,omitempty"`
	Run          *grading.RunResult `json:"run,omitempty"`
	Error        string             `json:"error,omitempty"`
	Duration     time.Duration      `json:"duration"`
	CompletedAt  time.Time          `json:"completed_at"`
}

// Connection manages the RabbitMQ connection with automatic reconnection.
// Consumers register a hook to resubscribe on the new channel.
type Connection struct {
	url        string
	conn       *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	closed     bool
	reconnects int
	hooksMu    sync.Mutex
	hooks      []func(*amqp.Channel) error
	logger     *slog.Logger
}

// NewConnection dials RabbitMQ and declares the grading topology.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{
		url:    url,
		logger: logger,
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes connection and channel
func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.conn, err = amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.declareTopology(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	go c.handleReconnect(c.conn)

	c.logger.Info("connected to RabbitMQ", "url", sanitizeURL(c.url))
	return nil
}

// declareTopology creates the job queue and the result exchange.
func (c *Connection) declareTopology() error {
	_, err := c.channel.QueueDeclare(
		JobQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-message-ttl": jobTTL},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", JobQueueName, err)
	}

	err = c.channel.ExchangeDeclare(
		ResultExchangeName,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ResultExchangeName, err)
	}
	return nil
}

// OnReconnect registers fn to run with the fresh channel after every
// successful reconnect. Deliveries from the old channel stop on a drop, so
// consumers use this to set QoS and consume again.
func (c *Connection) OnReconnect(fn func(ch *amqp.Channel) error) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// runReconnectHooks calls every hook, even after one fails.
func (c *Connection) runReconnectHooks(ch *amqp.Channel) error {
	c.hooksMu.Lock()
	hooks := append([]func(*amqp.Channel) error(nil), c.hooks...)
	c.hooksMu.Unlock()

	var errs []error
	for _, fn := range hooks {
		if err := fn(ch); err != nil {
			c.logger.Error("resubscribe after reconnect", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// handleReconnect waits for conn to close and redials with backoff.
func (c *Connection) handleReconnect(conn *amqp.Connection) {
	err, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1))
	if !ok || err == nil {
		return // Normal close
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	c.logger.Warn("RabbitMQ connection closed, attempting to reconnect",
		"error", err,
		"reconnects", c.reconnects,
	)

	for i := 0; i < 10; i++ {
		c.reconnects++
		time.Sleep(reconnectBackoff(i))

		if err := c.connect(); err != nil {
			c.logger.Error("reconnection failed", "error", err, "attempt", i+1)
			continue
		}

		c.logger.Info("reconnected to RabbitMQ", "attempts", i+1)
		_ = c.runReconnectHooks(c.Channel())
		return
	}

	c.logger.Error("failed to reconnect to RabbitMQ after 10 attempts")
}

// reconnectBackoff doubles from one second, capped at 30s.
func reconnectBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return 30 * time.Second
	}
	backoff := time.Duration(1<<attempt) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

// Channel returns the current channel (thread-safe)
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected checks if the connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// PublishJSON publishes a JSON message. An empty exchange routes straight to
// the queue named by key.
func (c *Connection) PublishJSON(ctx context.Context, exchange, key string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	return ch.PublishWithContext(
		ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// sanitizeURL hides the password for logging
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if len(raw) > 20 {
			return raw[:20] + "..."
		}
		return raw
	}
	return u.Redacted()
}
