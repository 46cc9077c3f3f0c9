package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer publishes grading jobs and results.
type Producer struct {
	conn   *Connection
	logger *slog.Logger
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn, logger: conn.logger}
}

// PublishJob publishes a grading job, assigning an id if it has none.
func (p *Producer) PublishJob(ctx context.Context, job *GradeJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.Kind == "" {
		job.Kind = KindGrade
	}

	if err := p.conn.PublishJSON(ctx, "", JobQueueName, job); err != nil {
		return fmt.Errorf("failed to publish grading job: %w", err)
	}

	p.logger.Info("published grading job",
		"job_id", job.ID,
		"user_id", job.UserID,
		"assignment_id", job.AssignmentID,
		"kind", job.Kind,
	)

	return nil
}

// PublishResult fans a grading result out to every result consumer.
func (p *Producer) PublishResult(ctx context.Context, result *GradeResult) error {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, ResultExchangeName, "", result); err != nil {
		return fmt.Errorf("failed to publish grading result: %w", err)
	}

	p.logger.Info("published grading result",
		"job_id", result.JobID,
		"status", result.Status,
		"duration", result.Duration,
	)

	return nil
}

// NewGradeJob creates a job for the given user and assignment.
func NewGradeJob(userID uuid.UUID, assignmentID int64, kind JobKind, code, stdin string) *GradeJob {
	return &GradeJob{
		ID:           uuid.New(),
		UserID:       userID,
		AssignmentID: assignmentID,
		Kind:         kind,
		Code:         code,
		Stdin:        stdin,
		CreatedAt:    time.Now(),
	}
}
