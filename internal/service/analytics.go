package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/store"
)

// ActivitySummary is the dashboard rollup for one workspace.
type ActivitySummary struct {
	Since  time.Time              `json:"since"`
	Counts []store.TypeCount      `json:"counts"`
	Recent []model.AnalyticsEvent `json:"recent"`
}

// AnalyticsService reads the append-only event stream the other
// services write as they work.
type AnalyticsService struct {
	stores *store.Stores
	logger *slog.Logger
}

func NewAnalyticsService(stores *store.Stores, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		stores: stores,
		logger: logger,
	}
}

// Summary rolls up event counts since a point in time plus the most
// recent raw events.
func (s *AnalyticsService) Summary(ctx context.Context, workspaceID int64, since time.Time, recentLimit int32) (*ActivitySummary, error) {
	counts, err := s.stores.Analytics.CountByTypeSince(ctx, workspaceID, since)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	recent, err := s.stores.Analytics.ListRecent(ctx, workspaceID, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("listing recent events: %w", err)
	}

	return &ActivitySummary{Since: since, Counts: counts, Recent: recent}, nil
}

// ListEvents pages the raw event stream, optionally filtered by type
// and time window.
func (s *AnalyticsService) ListEvents(ctx context.Context, workspaceID int64, eventType *model.AnalyticsEventType, since, until *time.Time, limit, offset int32) ([]model.AnalyticsEvent, error) {
	events, err := s.stores.Analytics.List(ctx, workspaceID, eventType, since, until, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return events, nil
}
