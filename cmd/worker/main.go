package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"leadmap.app/server/common/id"
	"leadmap.app/server/common/logger"
	"leadmap.app/server/core/config"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/schedule"
	"leadmap.app/server/internal/service"
	"leadmap.app/server/internal/store"
	"leadmap.app/server/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)
	logger.Setup(cfg)

	slog.InfoContext(ctx, "leadmap worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Queue.Group,
		"consumer_name", cfg.Queue.Consumer)

	// Different node id than the server so both can mint ids.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Queue.Stream)

	producer := queue.NewRedisProducer(redisClient, cfg.Queue.Stream, slog.Default())

	stores := store.New(database.Querier())

	services, err := service.NewServices(cfg, stores, service.NewTxRunner(database), producer, slog.Default())
	if err != nil {
		slog.ErrorContext(ctx, "failed to build services", "error", err)
		os.Exit(1)
	}

	if err := services.Search().EnsureCollections(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to ensure search collections", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Queue.Stream,
		Group:        cfg.Queue.Group,
		Consumer:     cfg.Queue.Consumer,
		DLQStream:    cfg.Queue.DLQStream,
		BatchSize:    cfg.Queue.BatchSize,
		Block:        cfg.Queue.Block,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RequeueDelay: cfg.Queue.RequeueDelay,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	w := worker.New(consumer, worker.Processors{
		Sync:     services.Sync(),
		Campaign: services.Campaigns(),
		Publish:  services.Social(),
		Enrich:   services.Leads(),
		Index:    services.Search(),
	}, worker.Config{
		MaxAttempts: cfg.Queue.MaxAttempts,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Queue.Stream,
		Group:     cfg.Queue.Group,
		Consumer:  cfg.Queue.Consumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	scheduler, err := schedule.New(schedule.Config{
		PollInterval:     cfg.Scheduler.PollInterval,
		BatchSize:        cfg.Scheduler.BatchSize,
		WatchRenewalLead: cfg.Sync.WatchRenewalLead,
		RefreshLead:      cfg.Sync.RefreshLead,
	}, services, slog.Default())
	if err != nil {
		slog.ErrorContext(ctx, "failed to build scheduler", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	errCh := make(chan error, 3)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	// Pull subscriber for deployments that cannot take Pub/Sub push.
	var subscriber *google.Subscriber
	if cfg.PubSub.PullEnabled {
		subscriber, err = google.NewSubscriber(ctx, google.SubscriberConfig{
			ProjectID:      cfg.PubSub.ProjectID,
			SubscriptionID: cfg.PubSub.Subscription,
		}, func(ctx context.Context, n google.Notification, messageID string) error {
			_, err := services.Ingest().HandleGmailNotification(ctx, n, messageID)
			return err
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create pubsub subscriber", "error", err)
			os.Exit(1)
		}
		go func() {
			errCh <- subscriber.Run(ctx)
		}()
	}

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	scheduler.Stop()
	reclaimer.Stop()
	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			slog.WarnContext(ctx, "pubsub subscriber close error", "error", err)
		}
	}
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
██╗     ███████╗ █████╗ ██████╗ ███╗   ███╗ █████╗ ██████╗
██║     ██╔════╝██╔══██╗██╔══██╗████╗ ████║██╔══██╗██╔══██╗
██║     █████╗  ███████║██║  ██║██╔████╔██║███████║██████╔╝
██║     ██╔══╝  ██╔══██║██║  ██║██║╚██╔╝██║██╔══██║██╔═══╝
███████╗███████╗██║  ██║██████╔╝██║ ╚═╝ ██║██║  ██║██║
╚══════╝╚══════╝╚═╝  ╚═╝╚═════╝ ╚═╝     ╚═╝╚═╝  ╚═╝╚═╝
`
