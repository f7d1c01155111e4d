package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/store"
	"leadmap.app/server/internal/summary"
)

var ErrSummaryUnavailable = errors.New("thread summaries are not configured")

// InboxService is the read side of synced mail: thread listings,
// message bodies, read/star flags, lead linking, and AI summaries.
type InboxService struct {
	stores     *store.Stores
	summarizer summary.Summarizer
	logger     *slog.Logger
}

func NewInboxService(stores *store.Stores, summarizer summary.Summarizer, logger *slog.Logger) *InboxService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxService{
		stores:     stores,
		summarizer: summarizer,
		logger:     logger,
	}
}

func (s *InboxService) ListThreads(ctx context.Context, workspaceID, mailboxID int64, limit, offset int32) ([]model.EmailThread, error) {
	mailbox, err := s.stores.Mailboxes.GetByID(ctx, mailboxID)
	if err != nil {
		return nil, err
	}
	if mailbox.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	return s.stores.Threads.ListByMailbox(ctx, mailboxID, limit, offset)
}

func (s *InboxService) ListThreadsByLead(ctx context.Context, workspaceID, leadID int64) ([]model.EmailThread, error) {
	lead, err := s.stores.Leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	return s.stores.Threads.ListByLead(ctx, leadID)
}

// GetThread returns a thread and its messages oldest-first.
func (s *InboxService) GetThread(ctx context.Context, workspaceID, threadID int64) (*model.EmailThread, []model.EmailMessage, error) {
	thread, err := s.getThread(ctx, workspaceID, threadID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.stores.Messages.ListByThread(ctx, threadID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading messages: %w", err)
	}
	return thread, messages, nil
}

func (s *InboxService) getThread(ctx context.Context, workspaceID, threadID int64) (*model.EmailThread, error) {
	thread, err := s.stores.Threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	return thread, nil
}

func (s *InboxService) SetRead(ctx context.Context, workspaceID, threadID int64, unread bool) error {
	if _, err := s.getThread(ctx, workspaceID, threadID); err != nil {
		return err
	}
	return s.stores.Threads.SetRead(ctx, threadID, unread)
}

func (s *InboxService) SetStarred(ctx context.Context, workspaceID, threadID int64, starred bool) error {
	if _, err := s.getThread(ctx, workspaceID, threadID); err != nil {
		return err
	}
	return s.stores.Threads.SetStarred(ctx, threadID, starred)
}

// LinkLead manually attaches a thread to a lead when address matching
// didn't find one.
func (s *InboxService) LinkLead(ctx context.Context, workspaceID, threadID, leadID int64) error {
	if _, err := s.getThread(ctx, workspaceID, threadID); err != nil {
		return err
	}

	lead, err := s.stores.Leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.WorkspaceID != workspaceID {
		return store.ErrNotFound
	}

	return s.stores.Threads.LinkLead(ctx, threadID, leadID)
}

// Summarize produces a short AI summary of the thread.
func (s *InboxService) Summarize(ctx context.Context, workspaceID, threadID int64) (string, error) {
	if s.summarizer == nil {
		return "", ErrSummaryUnavailable
	}

	thread, messages, err := s.GetThread(ctx, workspaceID, threadID)
	if err != nil {
		return "", err
	}

	text, err := s.summarizer.SummarizeThread(ctx, thread, messages)
	if err != nil {
		return "", fmt.Errorf("summarizing thread: %w", err)
	}
	return text, nil
}
