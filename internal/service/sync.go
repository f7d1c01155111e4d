package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"leadmap.app/server/common/id"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider"
	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/provider/msgraph"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/store"
)

// backfillMessageLimit bounds how much history a fresh connection
// imports. Push notifications cover everything after the watch.
const backfillMessageLimit = 50

// gmailSyncClient is the slice of the Gmail client the sync path
// drives. Satisfied by *google.Client.
type gmailSyncClient interface {
	Profile(ctx context.Context) (*google.Profile, error)
	ListHistory(ctx context.Context, startHistoryID uint64) ([]string, uint64, error)
	ListRecentMessageIDs(ctx context.Context, max int64) ([]string, error)
	GetMessage(ctx context.Context, id string) (*provider.EmailMessage, error)
}

// SyncService drains provider deltas into threads and messages. It is
// driven by queued tasks: one mailbox_sync per accepted notification,
// one mailbox_backfill per fresh connection.
type SyncService struct {
	stores    *store.Stores
	txRunner  TxRunner
	broker    *CredentialBroker
	producer  queue.Producer
	logger    *slog.Logger
	dialGmail func(ctx context.Context, cred *model.Credential) (gmailSyncClient, error)
}

func NewSyncService(stores *store.Stores, txRunner TxRunner, broker *CredentialBroker, producer queue.Producer, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		stores:   stores,
		txRunner: txRunner,
		broker:   broker,
		producer: producer,
		logger:   logger,
		dialGmail: func(ctx context.Context, cred *model.Credential) (gmailSyncClient, error) {
			return broker.GmailClient(ctx, cred)
		},
	}
}

// ProcessEvent syncs the mailbox behind one accepted notification.
// Permanent failures (deleted mailbox, revoked credential) mark the
// event failed and return nil so the task is acked; transient failures
// return an error and let the queue retry.
func (s *SyncService) ProcessEvent(ctx context.Context, eventLogID int64) error {
	ev, err := s.stores.EventLogs.GetByID(ctx, eventLogID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "sync event log row missing", "event_log_id", eventLogID)
			return nil
		}
		return fmt.Errorf("loading sync event: %w", err)
	}
	if ev.ProcessedAt != nil {
		return nil
	}

	mailbox, err := s.stores.Mailboxes.GetByID(ctx, ev.MailboxID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.failEvent(ctx, ev.ID, "mailbox no longer exists")
		}
		return fmt.Errorf("loading mailbox: %w", err)
	}
	if mailbox.State != model.MailboxStateActive {
		return s.failEvent(ctx, ev.ID, "mailbox is paused")
	}

	if err := s.syncMailbox(ctx, mailbox); err != nil {
		if errors.Is(err, provider.ErrCredentialRevoked) {
			return s.failEvent(ctx, ev.ID, "credential revoked")
		}
		msg := err.Error()
		if markErr := s.stores.EventLogs.MarkFailed(ctx, ev.ID, &msg); markErr != nil {
			s.logger.WarnContext(ctx, "failed to record sync error",
				"event_log_id", ev.ID, "error", markErr)
		}
		return err
	}

	if err := s.stores.EventLogs.MarkProcessed(ctx, ev.ID); err != nil {
		return fmt.Errorf("marking event processed: %w", err)
	}
	return nil
}

// FailEvent marks the event log row failed. The worker calls it when a
// task exhausts its retries, so the ingestion audit shows the loss.
func (s *SyncService) FailEvent(ctx context.Context, eventLogID int64, reason string) error {
	return s.failEvent(ctx, eventLogID, reason)
}

func (s *SyncService) failEvent(ctx context.Context, eventLogID int64, reason string) error {
	if err := s.stores.EventLogs.MarkFailed(ctx, eventLogID, &reason); err != nil {
		return fmt.Errorf("marking event failed: %w", err)
	}
	s.logger.WarnContext(ctx, "sync event dropped",
		"event_log_id", eventLogID, "reason", reason)
	return nil
}

func (s *SyncService) syncMailbox(ctx context.Context, mailbox *model.Mailbox) error {
	cred, err := s.stores.Credentials.GetByID(ctx, mailbox.CredentialID)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	switch mailbox.Provider {
	case model.ProviderGmail:
		err = s.syncGmail(ctx, mailbox, cred)
	case model.ProviderOutlook:
		err = s.syncOutlook(ctx, mailbox, cred)
	default:
		return fmt.Errorf("unsupported provider %q", mailbox.Provider)
	}
	if err != nil {
		if errors.Is(err, provider.ErrCredentialRevoked) {
			return s.broker.MarkRevoked(ctx, cred, &mailbox.ID)
		}
		return err
	}

	if err := s.stores.Mailboxes.SetLastSyncedAt(ctx, mailbox.ID, time.Now()); err != nil {
		s.logger.WarnContext(ctx, "failed to record sync time",
			"mailbox_id", mailbox.ID, "error", err)
	}
	return nil
}

func (s *SyncService) syncGmail(ctx context.Context, mailbox *model.Mailbox, cred *model.Credential) error {
	client, err := s.dialGmail(ctx, cred)
	if err != nil {
		return err
	}

	// No cursor means the backfill never ran; treat this sync as one.
	if mailbox.LastHistoryID == nil {
		return s.backfillGmail(ctx, mailbox, client)
	}

	messageIDs, latestHistoryID, err := client.ListHistory(ctx, *mailbox.LastHistoryID)
	if err != nil {
		if errors.Is(err, google.ErrHistoryExpired) {
			// Cursor fell off Gmail's retention window; re-import recent
			// mail and restart from the current cursor.
			s.logger.WarnContext(ctx, "gmail history expired, rebuilding cursor",
				"mailbox_id", mailbox.ID)
			return s.backfillGmail(ctx, mailbox, client)
		}
		return fmt.Errorf("listing gmail history: %w", err)
	}

	if err := s.fetchAndPersistGmail(ctx, mailbox, client, messageIDs); err != nil {
		return err
	}

	if latestHistoryID > 0 {
		if err := s.stores.Mailboxes.AdvanceHistoryID(ctx, mailbox.ID, latestHistoryID); err != nil {
			return fmt.Errorf("advancing history cursor: %w", err)
		}
	}
	return nil
}

func (s *SyncService) backfillGmail(ctx context.Context, mailbox *model.Mailbox, client gmailSyncClient) error {
	messageIDs, err := client.ListRecentMessageIDs(ctx, backfillMessageLimit)
	if err != nil {
		return fmt.Errorf("listing recent messages: %w", err)
	}

	if err := s.fetchAndPersistGmail(ctx, mailbox, client, messageIDs); err != nil {
		return err
	}

	profile, err := client.Profile(ctx)
	if err != nil {
		return fmt.Errorf("fetching gmail profile: %w", err)
	}
	if err := s.stores.Mailboxes.AdvanceHistoryID(ctx, mailbox.ID, profile.HistoryID); err != nil {
		return fmt.Errorf("advancing history cursor: %w", err)
	}
	return nil
}

func (s *SyncService) fetchAndPersistGmail(ctx context.Context, mailbox *model.Mailbox, client gmailSyncClient, messageIDs []string) error {
	for _, msgID := range messageIDs {
		em, err := client.GetMessage(ctx, msgID)
		if err != nil {
			if errors.Is(err, provider.ErrCredentialRevoked) || google.IsTransient(err) {
				return err
			}
			// Messages can be deleted between the history entry and the
			// fetch; skip them.
			s.logger.WarnContext(ctx, "skipping unfetchable message",
				"mailbox_id", mailbox.ID, "provider_message_id", msgID, "error", err)
			continue
		}
		if err := s.persistMessage(ctx, mailbox, em); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) syncOutlook(ctx context.Context, mailbox *model.Mailbox, cred *model.Credential) error {
	client, err := s.broker.GraphClient(ctx, cred)
	if err != nil {
		return err
	}

	deltaLink := ""
	if mailbox.DeltaLink != nil {
		deltaLink = *mailbox.DeltaLink
	}

	messages, newDeltaLink, err := client.Delta(ctx, deltaLink)
	if errors.Is(err, msgraph.ErrDeltaExpired) {
		// Graph invalidated the cursor; restart the delta from scratch.
		s.logger.WarnContext(ctx, "graph delta expired, restarting",
			"mailbox_id", mailbox.ID)
		messages, newDeltaLink, err = client.Delta(ctx, "")
	}
	if err != nil {
		return fmt.Errorf("walking graph delta: %w", err)
	}

	for i := range messages {
		if err := s.persistMessage(ctx, mailbox, &messages[i]); err != nil {
			return err
		}
	}

	if newDeltaLink != "" {
		if err := s.stores.Mailboxes.SetDeltaLink(ctx, mailbox.ID, newDeltaLink); err != nil {
			return fmt.Errorf("saving delta cursor: %w", err)
		}
	}
	return nil
}

// Backfill imports recent mail for a freshly connected mailbox.
func (s *SyncService) Backfill(ctx context.Context, mailboxID int64) error {
	mailbox, err := s.stores.Mailboxes.GetByID(ctx, mailboxID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "backfill for missing mailbox", "mailbox_id", mailboxID)
			return nil
		}
		return fmt.Errorf("loading mailbox: %w", err)
	}
	if mailbox.State != model.MailboxStateActive {
		return nil
	}

	cred, err := s.stores.Credentials.GetByID(ctx, mailbox.CredentialID)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	switch mailbox.Provider {
	case model.ProviderGmail:
		client, err := s.dialGmail(ctx, cred)
		if err == nil {
			err = s.backfillGmail(ctx, mailbox, client)
		}
		if err != nil {
			if errors.Is(err, provider.ErrCredentialRevoked) {
				return s.broker.MarkRevoked(ctx, cred, &mailbox.ID)
			}
			return err
		}
	case model.ProviderOutlook:
		if err := s.syncOutlook(ctx, mailbox, cred); err != nil {
			if errors.Is(err, provider.ErrCredentialRevoked) {
				return s.broker.MarkRevoked(ctx, cred, &mailbox.ID)
			}
			return err
		}
	}

	if err := s.stores.Mailboxes.SetLastSyncedAt(ctx, mailbox.ID, time.Now()); err != nil {
		s.logger.WarnContext(ctx, "failed to record sync time",
			"mailbox_id", mailbox.ID, "error", err)
	}
	return nil
}

// persistMessage upserts the thread, inserts the message, links the
// thread to a lead when the sender matches one, and stops campaign
// sequences on inbound replies. Redelivered messages are no-ops.
func (s *SyncService) persistMessage(ctx context.Context, mailbox *model.Mailbox, em *provider.EmailMessage) error {
	internalDate := em.InternalDate
	thread := &model.EmailThread{
		ID:               id.New(),
		WorkspaceID:      mailbox.WorkspaceID,
		MailboxID:        mailbox.ID,
		ProviderThreadID: em.ProviderThreadID,
		Subject:          em.Subject,
		Snippet:          em.Snippet,
		MessageCount:     1,
		IsUnread:         em.Unread,
		IsStarred:        em.Starred,
		LastMessageAt:    &internalDate,
	}

	var inserted bool
	err := s.txRunner.WithTx(ctx, func(stores *store.Stores) error {
		if err := stores.Threads.Upsert(ctx, thread); err != nil {
			return fmt.Errorf("upserting thread: %w", err)
		}

		msg := &model.EmailMessage{
			ID:                id.New(),
			ThreadID:          thread.ID,
			MailboxID:         mailbox.ID,
			ProviderMessageID: em.ProviderMessageID,
			FromAddress:       em.From,
			FromName:          em.FromName,
			ToAddresses:       em.To,
			Subject:           em.Subject,
			Snippet:           em.Snippet,
			BodyText:          em.BodyText,
			BodyHTML:          em.BodyHTML,
			Labels:            em.Labels,
			IsUnread:          em.Unread,
			InternalDate:      em.InternalDate,
		}
		var err error
		inserted, err = stores.Messages.Insert(ctx, msg)
		if err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
		if !inserted {
			return nil
		}

		inbound := !strings.EqualFold(em.From, mailbox.Address)
		if !inbound {
			return nil
		}

		if thread.LeadID == nil {
			lead, err := stores.Leads.GetByEmail(ctx, mailbox.WorkspaceID, em.From)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("matching lead: %w", err)
			}
			if lead != nil {
				if err := stores.Threads.LinkLead(ctx, thread.ID, lead.ID); err != nil {
					return fmt.Errorf("linking lead: %w", err)
				}
				thread.LeadID = &lead.ID
			}
		}

		// A reply from the lead ends any running sequence for them.
		if thread.LeadID != nil {
			stopped, err := stores.Campaigns.StopEnrollmentsByLead(ctx, *thread.LeadID)
			if err != nil {
				return fmt.Errorf("stopping enrollments: %w", err)
			}
			if stopped > 0 {
				s.logger.InfoContext(ctx, "stopped campaign enrollments on reply",
					"lead_id", *thread.LeadID, "count", stopped)
			}
		}

		return stores.Analytics.Insert(ctx, &model.AnalyticsEvent{
			ID:          id.New(),
			WorkspaceID: mailbox.WorkspaceID,
			EventType:   model.AnalyticsEmailReceived,
			MailboxID:   &mailbox.ID,
			LeadID:      thread.LeadID,
			OccurredAt:  time.Now(),
		})
	})
	if err != nil {
		return err
	}

	if inserted {
		s.enqueueThreadIndex(ctx, mailbox.WorkspaceID, thread.ID)
	}
	return nil
}

func (s *SyncService) enqueueThreadIndex(ctx context.Context, workspaceID, threadID int64) {
	if err := s.producer.Enqueue(ctx, queue.TaskMessage{
		TaskType:    queue.TaskTypeIndexSearch,
		WorkspaceID: &workspaceID,
		ThreadID:    &threadID,
		EntityType:  queue.IndexEntityThread,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue thread indexing",
			"thread_id", threadID, "error", err)
	}
}
