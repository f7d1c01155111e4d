package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"leadmap.app/server/common/logger"
	"leadmap.app/server/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// RedisReclaimer sweeps the consumer group's pending entries and takes
// over messages whose worker died between XREADGROUP and XACK. Safe to
// run alongside live workers: XAUTOCLAIM only hands over entries idle
// past MinIdle.
type RedisReclaimer struct {
	client    *redis.Client
	cfg       RedisReclaimerConfig
	consumer  *queue.RedisConsumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer *queue.RedisConsumer, processor queue.MessageProcessor) *RedisReclaimer {
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run sweeps on a ticker until Stop is called or ctx ends.
func (r *RedisReclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "leadmap.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"stream", r.cfg.Stream,
		"group", r.cfg.Group)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// sweep claims one batch of stale entries and processes them inline.
// The cursor restarts at "0-0" each sweep; anything left unclaimed is
// picked up next tick.
func (r *RedisReclaimer) sweep(ctx context.Context) error {
	claimed, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Start:    "0-0",
		Count:    r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("xautoclaim: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "claimed stale messages", "count", len(claimed))

	for _, msg := range claimed {
		if err := r.runReclaimed(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "reclaimed message failed",
				"error", err,
				"message_id", msg.ID)
		}
	}
	return nil
}

func (r *RedisReclaimer) runReclaimed(ctx context.Context, msg redis.XMessage) error {
	msgID := msg.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
	})

	parsed, err := queue.ParseMessage(msg)
	if err != nil {
		// An unparseable entry would loop through every sweep. Ack it away.
		slog.ErrorContext(ctx, "dropping unparseable reclaimed message", "error", err)
		return r.consumer.Ack(ctx, queue.Message{ID: msg.ID, Raw: msg})
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MailboxID:  parsed.MailboxID,
		EventLogID: parsed.EventLogID,
	})

	start := time.Now()
	if err := r.processor(ctx, parsed); err != nil {
		return fmt.Errorf("processing reclaimed message: %w", err)
	}

	slog.InfoContext(ctx, "reclaimed message processed",
		"task_type", parsed.TaskType,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
