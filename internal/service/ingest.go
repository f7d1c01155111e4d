package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"leadmap.app/server/common/id"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/provider/msgraph"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/store"
)

const (
	eventSourceGmailPush = "gmail_push"
	eventSourceGraphPush = "graph_push"

	eventTypeMailChanged = "mail_changed"
)

// IngestResult reports what happened to one provider notification.
type IngestResult struct {
	EventLogID int64
	MailboxID  int64
	// Duplicated means the dedupe key already existed; nothing was
	// enqueued.
	Duplicated bool
}

// IngestService turns provider push notifications into sync tasks.
// Every accepted notification becomes exactly one event log row and at
// most one queued task; redeliveries hit the dedupe key and stop there.
type IngestService struct {
	mailboxes store.MailboxStore
	txRunner  TxRunner
	producer  queue.Producer
	logger    *slog.Logger
}

func NewIngestService(mailboxes store.MailboxStore, txRunner TxRunner, producer queue.Producer, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		mailboxes: mailboxes,
		txRunner:  txRunner,
		producer:  producer,
		logger:    logger,
	}
}

// HandleGmailNotification ingests one decoded Pub/Sub push. A nil
// result with nil error means the notification was dropped (unknown or
// paused mailbox); the caller should still ack it.
func (s *IngestService) HandleGmailNotification(ctx context.Context, n google.Notification, pubsubMessageID string) (*IngestResult, error) {
	mailbox, err := s.mailboxes.GetByProviderAddress(ctx, model.ProviderGmail, n.EmailAddress)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "dropping notification for unknown mailbox",
				"source", eventSourceGmailPush,
				"address", n.EmailAddress)
			return nil, nil
		}
		return nil, fmt.Errorf("resolving mailbox: %w", err)
	}

	if mailbox.State != model.MailboxStateActive {
		s.logger.InfoContext(ctx, "dropping notification for paused mailbox",
			"mailbox_id", mailbox.ID)
		return nil, nil
	}

	// A history id at or behind the stored cursor carries no new
	// deltas; the sync that advanced the cursor already covered it.
	if mailbox.LastHistoryID != nil && n.HistoryID <= *mailbox.LastHistoryID {
		s.logger.InfoContext(ctx, "dropping stale notification",
			"mailbox_id", mailbox.ID,
			"history_id", n.HistoryID,
			"last_history_id", *mailbox.LastHistoryID)
		return nil, nil
	}

	payload, err := json.Marshal(map[string]any{
		"email_address":     n.EmailAddress,
		"history_id":        n.HistoryID,
		"pubsub_message_id": pubsubMessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	dedupeKey := dedupeKey(eventSourceGmailPush, n.EmailAddress, strconv.FormatUint(n.HistoryID, 10))

	return s.ingest(ctx, mailbox, eventSourceGmailPush, dedupeKey, payload)
}

// HandleGraphNotification ingests one Microsoft Graph change
// notification. The clientState check rejects notifications that did
// not originate from our subscriptions.
func (s *IngestService) HandleGraphNotification(ctx context.Context, n msgraph.ChangeNotification, expectedClientState string) (*IngestResult, error) {
	if expectedClientState != "" && n.ClientState != expectedClientState {
		s.logger.WarnContext(ctx, "dropping notification with bad client state",
			"source", eventSourceGraphPush,
			"subscription_id", n.SubscriptionID)
		return nil, nil
	}

	mailbox, err := s.mailboxes.GetBySubscriptionID(ctx, n.SubscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "dropping notification for unknown subscription",
				"source", eventSourceGraphPush,
				"subscription_id", n.SubscriptionID)
			return nil, nil
		}
		return nil, fmt.Errorf("resolving mailbox: %w", err)
	}

	if mailbox.State != model.MailboxStateActive {
		s.logger.InfoContext(ctx, "dropping notification for paused mailbox",
			"mailbox_id", mailbox.ID)
		return nil, nil
	}

	payload, err := json.Marshal(map[string]any{
		"subscription_id": n.SubscriptionID,
		"change_type":     n.ChangeType,
		"resource":        n.Resource,
		"resource_id":     n.ResourceData.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	dedupeKey := dedupeKey(eventSourceGraphPush, n.SubscriptionID, n.ResourceData.ID)

	return s.ingest(ctx, mailbox, eventSourceGraphPush, dedupeKey, payload)
}

func (s *IngestService) ingest(ctx context.Context, mailbox *model.Mailbox, source, dedupe string, payload json.RawMessage) (*IngestResult, error) {
	ev := &model.SyncEventLog{
		ID:          id.New(),
		Source:      source,
		EventType:   eventTypeMailChanged,
		DedupeKey:   dedupe,
		Payload:     payload,
		WorkspaceID: mailbox.WorkspaceID,
		MailboxID:   mailbox.ID,
	}

	var inserted bool
	err := s.txRunner.WithTx(ctx, func(stores *store.Stores) error {
		var txErr error
		inserted, txErr = stores.EventLogs.Insert(ctx, ev)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("recording sync event: %w", err)
	}

	result := &IngestResult{EventLogID: ev.ID, MailboxID: mailbox.ID, Duplicated: !inserted}
	if !inserted {
		s.logger.InfoContext(ctx, "skipping duplicate notification",
			"source", source,
			"mailbox_id", mailbox.ID)
		return result, nil
	}

	task := queue.TaskMessage{
		TaskType:    queue.TaskTypeMailboxSync,
		EventLogID:  &ev.ID,
		MailboxID:   &mailbox.ID,
		WorkspaceID: &mailbox.WorkspaceID,
	}
	// Carry the request trace into the worker so the sync shows up on
	// the same trace as the webhook delivery.
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		traceID := spanCtx.TraceID().String()
		task.TraceID = &traceID
	}

	if err := s.producer.Enqueue(ctx, task); err != nil {
		// The event log row survives; the watch renewal sweep will
		// trigger a fresh sync even if this enqueue is lost.
		return nil, fmt.Errorf("enqueueing sync task: %w", err)
	}

	s.logger.InfoContext(ctx, "ingested provider notification",
		"source", source,
		"mailbox_id", mailbox.ID,
		"event_log_id", ev.ID)

	return result, nil
}

func dedupeKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
