package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// TaskMessage is what services hand to the producer. Only the fields a
// task type validates are required; see ParseMessage.
type TaskMessage struct {
	TaskType     TaskType
	EventLogID   *int64
	MailboxID    *int64
	WorkspaceID  *int64
	EnrollmentID *int64
	ScheduleID   *int64
	LeadID       *int64
	ThreadID     *int64
	EntityType   string
	TraceID      *string
	Attempt      int
}

type Producer interface {
	Enqueue(ctx context.Context, msg TaskMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg TaskMessage) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	values := messageValues(Message{
		TaskType:     msg.TaskType,
		EventLogID:   msg.EventLogID,
		MailboxID:    msg.MailboxID,
		WorkspaceID:  msg.WorkspaceID,
		EnrollmentID: msg.EnrollmentID,
		ScheduleID:   msg.ScheduleID,
		LeadID:       msg.LeadID,
		ThreadID:     msg.ThreadID,
		EntityType:   msg.EntityType,
	}, attempt)

	if msg.TraceID != nil && *msg.TraceID != "" {
		values["trace_id"] = *msg.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued task", "task_type", msg.TaskType, "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
