package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"leadmap.app/server/common/logger"
)

type ConsumerConfig struct {
	Stream       string        // Redis stream name
	Group        string        // Redis consumer group name
	Consumer     string        // Redis consumer name
	DLQStream    string        // Dead letter queue stream for failed messages
	BatchSize    int64         // Number of messages to process per batch
	Block        time.Duration // How long to block/poll for new messages
	MaxAttempts  int           // Maximum retry attempts before moving to DLQ
	RequeueDelay time.Duration // Delay before retrying failed messages
}

type Message struct {
	ID           string
	TaskType     TaskType
	EventLogID   *int64
	MailboxID    *int64
	WorkspaceID  *int64
	EnrollmentID *int64
	ScheduleID   *int64
	LeadID       *int64
	ThreadID     *int64
	EntityType   string
	Attempt      int
	TraceID      string
	Raw          redis.XMessage
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Consumer groups are just readers, messages live in the stream itself.
	// Starting from "0" instead of "$" means we don't lose messages that
	// arrived while no group existed.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "leadmap.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// > = new messages not yet delivered to anyone. Unacked messages
		// are handled by the reclaimer on a separate goroutine.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseMessage(msg)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse message",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
				continue
			}
			messages = append(messages, parsed)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}

	slog.DebugContext(ctx, "message acknowledged", "stream", c.cfg.Stream)
	return nil
}

func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	nextAttempt := msg.Attempt + 1
	return c.RequeueWithAttempt(ctx, msg, nextAttempt, errMsg)
}

func (c *RedisConsumer) RequeueWithAttempt(ctx context.Context, msg Message, attempt int, errMsg string) error {
	if attempt <= 0 {
		attempt = msg.Attempt
		if attempt <= 0 {
			attempt = 1
		}
	}

	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	values := messageValues(msg, attempt)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	// Attempt 1 already failed when the first requeue happens, so the
	// first retry waits one base delay and later ones double it.
	if delay := backoffDelay(c.cfg.RequeueDelay, attempt-1); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "message requeued for retry",
		"next_attempt", attempt,
		"reason", errMsg)
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	values := messageValues(msg, msg.Attempt)
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "message sent to DLQ",
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

// maxRequeueDelay caps the retry backoff so a deep attempt count never
// stalls the consumer for minutes at a time.
const maxRequeueDelay = 5 * time.Minute

func backoffDelay(base time.Duration, failures int) time.Duration {
	if base <= 0 || failures <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < failures && delay < maxRequeueDelay; i++ {
		delay *= 2
	}
	if delay > maxRequeueDelay {
		delay = maxRequeueDelay
	}
	return delay
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	eventLogID, err := parseOptionalInt64(msg.Values, "event_log_id")
	if err != nil {
		return Message{}, err
	}
	mailboxID, err := parseOptionalInt64(msg.Values, "mailbox_id")
	if err != nil {
		return Message{}, err
	}
	workspaceID, err := parseOptionalInt64(msg.Values, "workspace_id")
	if err != nil {
		return Message{}, err
	}
	enrollmentID, err := parseOptionalInt64(msg.Values, "enrollment_id")
	if err != nil {
		return Message{}, err
	}
	scheduleID, err := parseOptionalInt64(msg.Values, "schedule_id")
	if err != nil {
		return Message{}, err
	}
	leadID, err := parseOptionalInt64(msg.Values, "lead_id")
	if err != nil {
		return Message{}, err
	}
	threadID, err := parseOptionalInt64(msg.Values, "thread_id")
	if err != nil {
		return Message{}, err
	}

	entityType, err := parseOptionalString(msg.Values, "entity_type")
	if err != nil {
		return Message{}, err
	}
	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}

	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	taskTypeStr, err := parseOptionalString(msg.Values, "task_type")
	if err != nil {
		return Message{}, err
	}

	taskType := TaskType(taskTypeStr)
	if taskType == "" {
		return Message{}, fmt.Errorf("missing task_type")
	}

	switch taskType {
	case TaskTypeMailboxSync:
		if mailboxID == nil || eventLogID == nil {
			return Message{}, fmt.Errorf("missing mailbox_id or event_log_id")
		}
	case TaskTypeMailboxBackfill:
		if mailboxID == nil {
			return Message{}, fmt.Errorf("missing mailbox_id")
		}
	case TaskTypeCampaignStep:
		if enrollmentID == nil {
			return Message{}, fmt.Errorf("missing enrollment_id")
		}
	case TaskTypePublishPost:
		if scheduleID == nil {
			return Message{}, fmt.Errorf("missing schedule_id")
		}
	case TaskTypeEnrichLead:
		if leadID == nil {
			return Message{}, fmt.Errorf("missing lead_id")
		}
	case TaskTypeIndexSearch:
		switch entityType {
		case IndexEntityLead:
			if leadID == nil {
				return Message{}, fmt.Errorf("missing lead_id")
			}
		case IndexEntityThread:
			if threadID == nil {
				return Message{}, fmt.Errorf("missing thread_id")
			}
		case "":
			return Message{}, fmt.Errorf("missing entity_type")
		default:
			return Message{}, fmt.Errorf("unknown entity_type %q", entityType)
		}
	default:
		return Message{}, fmt.Errorf("unknown task_type %q", taskType)
	}

	return Message{
		ID:           msg.ID,
		TaskType:     taskType,
		EventLogID:   eventLogID,
		MailboxID:    mailboxID,
		WorkspaceID:  workspaceID,
		EnrollmentID: enrollmentID,
		ScheduleID:   scheduleID,
		LeadID:       leadID,
		ThreadID:     threadID,
		EntityType:   entityType,
		Attempt:      attempt,
		TraceID:      traceID,
		Raw:          msg,
	}, nil
}

func parseOptionalInt64(values map[string]any, key string) (*int64, error) {
	raw, ok := values[key]
	if !ok {
		return nil, nil
	}
	str := fmt.Sprint(raw)
	num, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	return &num, nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	str := fmt.Sprint(raw)
	num, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

func messageValues(msg Message, attempt int) map[string]any {
	values := map[string]any{
		"task_type": string(msg.TaskType),
		"attempt":   attempt,
	}

	if msg.EventLogID != nil {
		values["event_log_id"] = *msg.EventLogID
	}
	if msg.MailboxID != nil {
		values["mailbox_id"] = *msg.MailboxID
	}
	if msg.WorkspaceID != nil {
		values["workspace_id"] = *msg.WorkspaceID
	}
	if msg.EnrollmentID != nil {
		values["enrollment_id"] = *msg.EnrollmentID
	}
	if msg.ScheduleID != nil {
		values["schedule_id"] = *msg.ScheduleID
	}
	if msg.LeadID != nil {
		values["lead_id"] = *msg.LeadID
	}
	if msg.ThreadID != nil {
		values["thread_id"] = *msg.ThreadID
	}
	if msg.EntityType != "" {
		values["entity_type"] = msg.EntityType
	}
	if msg.TraceID != "" {
		values["trace_id"] = msg.TraceID
	}

	return values
}
