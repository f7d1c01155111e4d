package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"leadmap.app/server/common/logger"
	"leadmap.app/server/internal/queue"
)

type Config struct {
	MaxAttempts int
}

// Processors holds one service per task type. A nil entry makes that
// task type fail and retry, so both binaries must wire the full set.
type Processors struct {
	Sync     SyncService
	Campaign CampaignService
	Publish  PublishService
	Enrich   EnrichService
	Index    IndexService
}

// Consumer is the slice of the queue the worker drives. Satisfied by
// *queue.RedisConsumer.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

type Worker struct {
	consumer   Consumer
	processors Processors
	cfg        Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, processors Processors, cfg Config) *Worker {
	return &Worker{
		consumer:   consumer,
		processors: processors,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.ProcessMessage(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"task_type", msg.TaskType)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

// ProcessMessage dispatches one message to its processor and acks on
// success. Panics are recovered into errors so a poisoned message
// cannot take down the batch loop or the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"task_type", msg.TaskType)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	taskType := string(msg.TaskType)
	fields := logger.LogFields{
		EventType:  &taskType,
		EventLogID: msg.EventLogID,
		MailboxID:  msg.MailboxID,
	}
	switch {
	case msg.EnrollmentID != nil:
		fields.JobID = msg.EnrollmentID
	case msg.ScheduleID != nil:
		fields.JobID = msg.ScheduleID
	}
	ctx = logger.WithLogFields(ctx, fields)

	slog.InfoContext(ctx, "processing message",
		"message_id", msg.ID,
		"task_type", msg.TaskType,
		"attempt", msg.Attempt)

	if err := w.dispatch(ctx, msg); err != nil {
		// Leave the message pending; the caller requeues or DLQs it.
		sc.RecordError(err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Message will be reclaimed and reprocessed, which is safe: every
		// processor is idempotent.
		slog.WarnContext(ctx, "failed to ACK message",
			"error", err,
			"message_id", msg.ID)
	}

	return nil
}

func (w *Worker) dispatch(ctx context.Context, msg queue.Message) error {
	switch msg.TaskType {
	case queue.TaskTypeMailboxSync:
		if w.processors.Sync == nil {
			return fmt.Errorf("no sync processor configured")
		}
		return w.processors.Sync.ProcessEvent(ctx, *msg.EventLogID)
	case queue.TaskTypeMailboxBackfill:
		if w.processors.Sync == nil {
			return fmt.Errorf("no sync processor configured")
		}
		return w.processors.Sync.Backfill(ctx, *msg.MailboxID)
	case queue.TaskTypeCampaignStep:
		if w.processors.Campaign == nil {
			return fmt.Errorf("no campaign processor configured")
		}
		return w.processors.Campaign.ExecuteStep(ctx, *msg.EnrollmentID)
	case queue.TaskTypePublishPost:
		if w.processors.Publish == nil {
			return fmt.Errorf("no publish processor configured")
		}
		return w.processors.Publish.PublishSchedule(ctx, *msg.ScheduleID)
	case queue.TaskTypeEnrichLead:
		if w.processors.Enrich == nil {
			return fmt.Errorf("no enrich processor configured")
		}
		return w.processors.Enrich.EnrichLead(ctx, *msg.LeadID)
	case queue.TaskTypeIndexSearch:
		if w.processors.Index == nil {
			return fmt.Errorf("no index processor configured")
		}
		if msg.EntityType == queue.IndexEntityThread {
			return w.processors.Index.IndexThread(ctx, *msg.ThreadID)
		}
		return w.processors.Index.IndexLead(ctx, *msg.LeadID)
	default:
		return fmt.Errorf("unknown task type %q", msg.TaskType)
	}
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"task_type", msg.TaskType,
			"attempts", msg.Attempt)
		w.failOwningRow(ctx, msg, err.Error())
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"task_type", msg.TaskType,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

// failOwningRow records the terminal failure on the row the task was
// working for, so a DLQed task is visible outside the stream. Enrich
// and index tasks have no such row.
func (w *Worker) failOwningRow(ctx context.Context, msg queue.Message, reason string) {
	var err error
	switch msg.TaskType {
	case queue.TaskTypeMailboxSync:
		if w.processors.Sync != nil && msg.EventLogID != nil {
			err = w.processors.Sync.FailEvent(ctx, *msg.EventLogID, reason)
		}
	case queue.TaskTypeCampaignStep:
		if w.processors.Campaign != nil && msg.EnrollmentID != nil {
			err = w.processors.Campaign.FailEnrollment(ctx, *msg.EnrollmentID, reason)
		}
	case queue.TaskTypePublishPost:
		if w.processors.Publish != nil && msg.ScheduleID != nil {
			err = w.processors.Publish.FailSchedule(ctx, *msg.ScheduleID, reason)
		}
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark owning row failed",
			"error", err,
			"message_id", msg.ID,
			"task_type", msg.TaskType)
	}
}
