package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"leadmap.app/server/common/id"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider/enrich"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/store"
)

// ListingImport is one scraped listing in an import batch.
type ListingImport struct {
	PropertyURL string          `json:"property_url"`
	Street      string          `json:"street"`
	City        string          `json:"city"`
	State       string          `json:"state"`
	Zip         string          `json:"zip"`
	Price       *int64          `json:"price,omitempty"`
	OwnerName   *string         `json:"owner_name,omitempty"`
	OwnerPhone  *string         `json:"owner_phone,omitempty"`
	OwnerEmail  *string         `json:"owner_email,omitempty"`
	Extra       json.RawMessage `json:"extra,omitempty"`
}

// ImportResult summarizes one import batch.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// LeadService owns the CRM pipeline: lead CRUD, listing imports,
// skip-trace enrichment, and stage moves.
type LeadService struct {
	stores   *store.Stores
	txRunner TxRunner
	enricher *enrich.Client
	producer queue.Producer
	logger   *slog.Logger
}

func NewLeadService(stores *store.Stores, txRunner TxRunner, enricher *enrich.Client, producer queue.Producer, logger *slog.Logger) *LeadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeadService{
		stores:   stores,
		txRunner: txRunner,
		enricher: enricher,
		producer: producer,
		logger:   logger,
	}
}

func (s *LeadService) Create(ctx context.Context, workspaceID int64, lead *model.Lead) (*model.Lead, error) {
	lead.ID = id.New()
	lead.WorkspaceID = workspaceID
	if lead.Stage == "" {
		lead.Stage = model.LeadStageNew
	}
	if lead.Source == "" {
		lead.Source = model.LeadSourceManual
	}
	if err := s.stores.Leads.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("creating lead: %w", err)
	}

	s.recordLeadCreated(ctx, lead)
	s.enqueueLeadIndex(ctx, lead.WorkspaceID, lead.ID)
	return lead, nil
}

func (s *LeadService) Get(ctx context.Context, workspaceID, leadID int64) (*model.Lead, error) {
	lead, err := s.stores.Leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	return lead, nil
}

func (s *LeadService) List(ctx context.Context, workspaceID int64, stage *model.LeadStage, limit, offset int32) ([]model.Lead, error) {
	return s.stores.Leads.List(ctx, workspaceID, stage, limit, offset)
}

func (s *LeadService) Update(ctx context.Context, workspaceID int64, lead *model.Lead) (*model.Lead, error) {
	existing, err := s.Get(ctx, workspaceID, lead.ID)
	if err != nil {
		return nil, err
	}
	lead.WorkspaceID = existing.WorkspaceID
	if err := s.stores.Leads.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("updating lead: %w", err)
	}
	s.enqueueLeadIndex(ctx, lead.WorkspaceID, lead.ID)
	return lead, nil
}

func (s *LeadService) Delete(ctx context.Context, workspaceID, leadID int64) error {
	if _, err := s.Get(ctx, workspaceID, leadID); err != nil {
		return err
	}
	return s.stores.Leads.Delete(ctx, leadID)
}

// SetStage moves a lead through the pipeline and records the move.
func (s *LeadService) SetStage(ctx context.Context, workspaceID, leadID int64, stage model.LeadStage, actorUserID int64) (*model.Lead, error) {
	lead, err := s.Get(ctx, workspaceID, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Stage == stage {
		return lead, nil
	}

	if err := s.stores.Leads.SetStage(ctx, leadID, stage); err != nil {
		return nil, fmt.Errorf("moving lead stage: %w", err)
	}
	lead.Stage = stage

	payload, _ := json.Marshal(map[string]string{"stage": string(stage)})
	if err := s.stores.Analytics.Insert(ctx, &model.AnalyticsEvent{
		ID:          id.New(),
		WorkspaceID: workspaceID,
		EventType:   model.AnalyticsLeadStageMoved,
		LeadID:      &leadID,
		ActorUserID: &actorUserID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to record analytics event", "error", err)
	}

	s.enqueueLeadIndex(ctx, workspaceID, leadID)
	return lead, nil
}

// ImportListings upserts a scraped batch on property_url. New leads
// without owner contact are queued for enrichment; every touched lead
// is re-indexed.
func (s *LeadService) ImportListings(ctx context.Context, workspaceID int64, source model.LeadSource, listings []ListingImport) (*ImportResult, error) {
	result := &ImportResult{}

	for i := range listings {
		in := &listings[i]
		if in.PropertyURL == "" {
			result.Skipped++
			continue
		}

		propertyURL := in.PropertyURL
		lead := &model.Lead{
			ID:          id.New(),
			WorkspaceID: workspaceID,
			Source:      source,
			Stage:       model.LeadStageNew,
			Street:      in.Street,
			City:        in.City,
			State:       in.State,
			Zip:         in.Zip,
			Price:       in.Price,
			PropertyURL: &propertyURL,
			OwnerName:   in.OwnerName,
			OwnerPhone:  in.OwnerPhone,
			OwnerEmail:  in.OwnerEmail,
			Extra:       in.Extra,
		}

		insertedID := lead.ID
		if err := s.stores.Leads.UpsertByPropertyURL(ctx, lead); err != nil {
			return nil, fmt.Errorf("importing %s: %w", in.PropertyURL, err)
		}

		// Upsert rewrites the struct from the row; a new row keeps the
		// id we generated.
		created := lead.ID == insertedID
		if created {
			result.Created++
			s.recordLeadCreated(ctx, lead)
			if lead.OwnerEmail == nil && lead.OwnerPhone == nil {
				s.enqueueEnrich(ctx, workspaceID, lead.ID)
			}
		} else {
			result.Updated++
		}
		s.enqueueLeadIndex(ctx, workspaceID, lead.ID)
	}

	s.logger.InfoContext(ctx, "imported listings",
		"workspace_id", workspaceID,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped)
	return result, nil
}

// EnrichLead runs skip-trace on a lead's property address and fills in
// owner contact fields it found. Vendor misses are terminal no-ops.
func (s *LeadService) EnrichLead(ctx context.Context, leadID int64) error {
	if s.enricher == nil {
		return nil
	}

	lead, err := s.stores.Leads.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "enrich task for missing lead", "lead_id", leadID)
			return nil
		}
		return fmt.Errorf("loading lead: %w", err)
	}
	if lead.EnrichedAt != nil {
		return nil
	}

	res, err := s.enricher.SkipTrace(ctx, enrich.Request{
		Street: lead.Street,
		City:   lead.City,
		State:  lead.State,
		Zip:    lead.Zip,
	})
	if err != nil {
		var apiErr *enrich.APIError
		if errors.As(err, &apiErr) && !apiErr.Transient() {
			s.logger.WarnContext(ctx, "skip-trace rejected lead",
				"lead_id", leadID, "error", err)
			return nil
		}
		return fmt.Errorf("skip-trace lookup: %w", err)
	}

	if err := s.stores.Leads.MarkEnriched(ctx, leadID, res.OwnerName, res.OwnerPhone, res.OwnerEmail, res.Extra); err != nil {
		return fmt.Errorf("saving enrichment: %w", err)
	}

	s.enqueueLeadIndex(ctx, lead.WorkspaceID, leadID)
	s.logger.InfoContext(ctx, "enriched lead",
		"lead_id", leadID,
		"found_email", res.OwnerEmail != nil,
		"found_phone", res.OwnerPhone != nil)
	return nil
}

func (s *LeadService) recordLeadCreated(ctx context.Context, lead *model.Lead) {
	if err := s.stores.Analytics.Insert(ctx, &model.AnalyticsEvent{
		ID:          id.New(),
		WorkspaceID: lead.WorkspaceID,
		EventType:   model.AnalyticsLeadCreated,
		LeadID:      &lead.ID,
		OccurredAt:  time.Now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to record analytics event", "error", err)
	}
}

func (s *LeadService) enqueueEnrich(ctx context.Context, workspaceID, leadID int64) {
	if err := s.producer.Enqueue(ctx, queue.TaskMessage{
		TaskType:    queue.TaskTypeEnrichLead,
		WorkspaceID: &workspaceID,
		LeadID:      &leadID,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue enrichment",
			"lead_id", leadID, "error", err)
	}
}

func (s *LeadService) enqueueLeadIndex(ctx context.Context, workspaceID, leadID int64) {
	if err := s.producer.Enqueue(ctx, queue.TaskMessage{
		TaskType:    queue.TaskTypeIndexSearch,
		WorkspaceID: &workspaceID,
		LeadID:      &leadID,
		EntityType:  queue.IndexEntityLead,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue lead indexing",
			"lead_id", leadID, "error", err)
	}
}
