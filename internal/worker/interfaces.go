package worker

import "context"

// Narrow views of the services the worker drives - defined here so the
// worker package can be tested with hand-rolled mocks.

type SyncService interface {
	// ProcessEvent drains provider deltas for one accepted notification.
	ProcessEvent(ctx context.Context, eventLogID int64) error
	// Backfill imports recent history for a freshly connected mailbox.
	Backfill(ctx context.Context, mailboxID int64) error
	// FailEvent marks the event log row failed once the queue gives up
	// on its task.
	FailEvent(ctx context.Context, eventLogID int64, reason string) error
}

type CampaignService interface {
	ExecuteStep(ctx context.Context, enrollmentID int64) error
	FailEnrollment(ctx context.Context, enrollmentID int64, reason string) error
}

type PublishService interface {
	PublishSchedule(ctx context.Context, scheduleID int64) error
	FailSchedule(ctx context.Context, scheduleID int64, reason string) error
}

type EnrichService interface {
	EnrichLead(ctx context.Context, leadID int64) error
}

type IndexService interface {
	IndexLead(ctx context.Context, leadID int64) error
	IndexThread(ctx context.Context, threadID int64) error
}
