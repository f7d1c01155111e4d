// Package schedule runs the cron side of the worker: due-step polls,
// watch renewal, credential refresh, and session cleanup.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"leadmap.app/server/internal/service"
)

type Config struct {
	// PollInterval drives the due-enrollment and due-schedule polls.
	PollInterval time.Duration
	// BatchSize bounds one claim per poll.
	BatchSize int32
	// WatchRenewalLead renews provider watches expiring within this window.
	WatchRenewalLead time.Duration
	// RefreshLead refreshes credentials expiring within this window.
	RefreshLead time.Duration
}

// Scheduler owns the cron entries. Every job runs with a timeout a bit
// under its interval so a stuck provider call cannot pile up runs.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	services *service.Services
	logger   *slog.Logger
}

func New(cfg Config, services *service.Services, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	s := &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		services: services,
		logger:   logger,
	}

	poll := fmt.Sprintf("@every %s", cfg.PollInterval)
	jobs := []struct {
		spec string
		name string
		fn   func(ctx context.Context) error
	}{
		{poll, "dispatch_campaign_steps", s.dispatchCampaignSteps},
		{poll, "dispatch_post_schedules", s.dispatchPostSchedules},
		{"@every 15m", "renew_watches", s.renewWatches},
		{"@every 5m", "refresh_credentials", s.refreshCredentials},
		{"@every 1h", "cleanup_sessions", s.cleanupSessions},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.run(job.name, job.fn) }); err != nil {
			return nil, fmt.Errorf("registering %s: %w", job.name, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "poll_interval", s.cfg.PollInterval)
}

// Stop waits for in-flight jobs before returning.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error("scheduled job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("scheduled job done", "job", name, "took", time.Since(start))
}

func (s *Scheduler) dispatchCampaignSteps(ctx context.Context) error {
	n, err := s.services.Campaigns().DispatchDueSteps(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("dispatched campaign steps", "count", n)
	}
	return nil
}

func (s *Scheduler) dispatchPostSchedules(ctx context.Context) error {
	n, err := s.services.Social().DispatchDueSchedules(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("dispatched post schedules", "count", n)
	}
	return nil
}

func (s *Scheduler) renewWatches(ctx context.Context) error {
	return s.services.Mailboxes().RenewExpiringWatches(ctx, s.cfg.WatchRenewalLead, s.cfg.BatchSize)
}

func (s *Scheduler) refreshCredentials(ctx context.Context) error {
	return s.services.Broker().RefreshExpiring(ctx, s.cfg.RefreshLead, s.cfg.BatchSize)
}

func (s *Scheduler) cleanupSessions(ctx context.Context) error {
	return s.services.Auth().CleanupExpiredSessions(ctx)
}
