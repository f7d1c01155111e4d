package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/search"
	"leadmap.app/server/internal/store"
)

// SearchService keeps the Typesense index in step with the database
// and answers workspace-scoped queries. A nil search client turns the
// whole thing into a no-op so deployments without Typesense still run.
type SearchService struct {
	stores *store.Stores
	client *search.Client
	logger *slog.Logger
}

func NewSearchService(stores *store.Stores, client *search.Client, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		stores: stores,
		client: client,
		logger: logger,
	}
}

func (s *SearchService) Enabled() bool {
	return s.client != nil
}

// EnsureCollections creates the index schemas if missing. Called at
// worker boot.
func (s *SearchService) EnsureCollections(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.EnsureCollections(ctx)
}

// IndexLead refreshes the search document for one lead. A lead that no
// longer exists is removed from the index instead.
func (s *SearchService) IndexLead(ctx context.Context, leadID int64) error {
	if s.client == nil {
		return nil
	}

	lead, err := s.stores.Leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if delErr := s.client.DeleteLead(ctx, leadID); delErr != nil {
				s.logger.WarnContext(ctx, "failed to remove deleted lead from index",
					"lead_id", leadID, "error", delErr)
			}
			return nil
		}
		return fmt.Errorf("loading lead: %w", err)
	}

	return s.client.UpsertLead(ctx, leadDoc(lead))
}

func (s *SearchService) IndexThread(ctx context.Context, threadID int64) error {
	if s.client == nil {
		return nil
	}

	thread, err := s.stores.Threads.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "index task for missing thread", "thread_id", threadID)
			return nil
		}
		return fmt.Errorf("loading thread: %w", err)
	}

	fromAddress := ""
	messages, err := s.stores.Messages.ListByThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("loading thread messages: %w", err)
	}
	if len(messages) > 0 {
		fromAddress = messages[len(messages)-1].FromAddress
	}

	return s.client.UpsertThread(ctx, search.ThreadDoc{
		ID:          strconv.FormatInt(thread.ID, 10),
		WorkspaceID: thread.WorkspaceID,
		MailboxID:   thread.MailboxID,
		Subject:     thread.Subject,
		Snippet:     thread.Snippet,
		FromAddress: fromAddress,
	})
}

func (s *SearchService) SearchLeads(ctx context.Context, workspaceID int64, query string, limit int) ([]search.LeadDoc, error) {
	if s.client == nil {
		return nil, nil
	}
	return s.client.SearchLeads(ctx, workspaceID, query, limit)
}

func (s *SearchService) SearchThreads(ctx context.Context, workspaceID int64, query string, limit int) ([]search.ThreadDoc, error) {
	if s.client == nil {
		return nil, nil
	}
	return s.client.SearchThreads(ctx, workspaceID, query, limit)
}

func leadDoc(lead *model.Lead) search.LeadDoc {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return search.LeadDoc{
		ID:          strconv.FormatInt(lead.ID, 10),
		WorkspaceID: lead.WorkspaceID,
		Street:      lead.Street,
		City:        lead.City,
		State:       lead.State,
		Zip:         lead.Zip,
		OwnerName:   deref(lead.OwnerName),
		OwnerEmail:  deref(lead.OwnerEmail),
		Stage:       string(lead.Stage),
	}
}
