package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ResultHandler handles a grading result for a specific job
type ResultHandler func(result *GradeResult)

// recentResults keeps the newest results by job id, evicting in arrival order.
type recentResults struct {
	mu       sync.RWMutex
	byID     map[string]*GradeResult
	order    []string
	capacity int
}

func (r *recentResults) put(id string, result *GradeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		r.order = append(r.order, id)
	}
	r.byID[id] = result
	for len(r.order) > r.capacity {
		delete(r.byID, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *recentResults) get(id string) (*GradeResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.byID[id]
	return result, ok
}

// ResultConsumer reads results from a private queue bound to the result
// exchange. It keeps recent results for job lookups and notifies per-job
// subscribers. Results live only in this process's memory, and each replica
// receives its own copy of every result.
type ResultConsumer struct {
	conn      *Connection
	recent    *recentResults
	subsMu    sync.RWMutex
	subs      map[string]ResultHandler
	logger    *slog.Logger
	mu        sync.Mutex
	stopped   bool
	consuming atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewResultConsumer creates a result consumer keeping up to capacity recent
// results (default 1000).
func NewResultConsumer(conn *Connection, capacity int) *ResultConsumer {
	if capacity <= 0 {
		capacity = 1000
	}
	logger := slog.Default()
	if conn != nil {
		logger = conn.logger
	}
	return &ResultConsumer{
		conn:   conn,
		recent: &recentResults{byID: make(map[string]*GradeResult), capacity: capacity},
		subs:   make(map[string]ResultHandler),
		logger: logger,
	}
}

// Subscribe registers a handler for results of a specific job
func (rc *ResultConsumer) Subscribe(jobID string, handler ResultHandler) {
	rc.subsMu.Lock()
	defer rc.subsMu.Unlock()
	rc.subs[jobID] = handler
}

// Unsubscribe removes a handler
func (rc *ResultConsumer) Unsubscribe(jobID string) {
	rc.subsMu.Lock()
	defer rc.subsMu.Unlock()
	delete(rc.subs, jobID)
}

// Result returns a recently received result.
func (rc *ResultConsumer) Result(jobID string) (*GradeResult, bool) {
	return rc.recent.get(jobID)
}

// Start begins consuming results and resubscribes after every reconnect.
func (rc *ResultConsumer) Start(ctx context.Context) error {
	ctx, rc.cancel = context.WithCancel(ctx)

	if err := rc.subscribe(ctx, rc.conn.Channel()); err != nil {
		return err
	}
	rc.conn.OnReconnect(func(ch *amqp.Channel) error {
		return rc.subscribe(ctx, ch)
	})
	return nil
}

// subscribe binds a fresh server-named queue to the result exchange. The
// queue is exclusive and auto-deleted, so it lives as long as this channel.
func (rc *ResultConsumer) subscribe(ctx context.Context, ch *amqp.Channel) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.stopped || ctx.Err() != nil {
		return nil
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		amqp.Table{"x-message-ttl": resultTTL},
	)
	if err != nil {
		return fmt.Errorf("declare result queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", ResultExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", q.Name, ResultExchangeName, err)
	}

	// Auto-ack: a lost result only means the learner polls until it expires
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	rc.consuming.Store(true)
	rc.wg.Add(1)
	go rc.consume(ctx, msgs)
	return nil
}

// Consuming reports whether results are currently being received.
func (rc *ResultConsumer) Consuming() bool {
	return rc.consuming.Load()
}

func (rc *ResultConsumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer rc.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				rc.consuming.Store(false)
				rc.logger.Warn("result channel closed")
				return
			}
			var result GradeResult
			if err := json.Unmarshal(msg.Body, &result); err != nil {
				rc.logger.Error("dropping malformed result", "error", err)
				continue
			}
			rc.deliver(&result)
		}
	}
}

func (rc *ResultConsumer) deliver(result *GradeResult) {
	id := result.JobID.String()
	rc.recent.put(id, result)

	rc.subsMu.RLock()
	handler, ok := rc.subs[id]
	rc.subsMu.RUnlock()
	if ok {
		handler(result)
	}
}

// Stop stops the result consumer
func (rc *ResultConsumer) Stop() {
	rc.mu.Lock()
	rc.stopped = true
	rc.mu.Unlock()

	if rc.cancel != nil {
		rc.cancel()
	}
	rc.wg.Wait()
	rc.consuming.Store(false)
}
