package store

import (
	"context"
	"time"

	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type analyticsStore struct {
	q db.Querier
}

func newAnalyticsStore(q db.Querier) AnalyticsStore {
	return &analyticsStore{q: q}
}

func (s *analyticsStore) Insert(ctx context.Context, ev *model.AnalyticsEvent) error {
	return s.q.QueryRow(ctx, `
		INSERT INTO analytics_events (id, workspace_id, event_type, actor_user_id, mailbox_id, lead_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING occurred_at`,
		ev.ID, ev.WorkspaceID, ev.EventType, ev.ActorUserID, ev.MailboxID, ev.LeadID, ev.Payload).
		Scan(&ev.OccurredAt)
}

func (s *analyticsStore) CountByTypeSince(ctx context.Context, workspaceID int64, since time.Time) ([]TypeCount, error) {
	rows, err := s.q.Query(ctx, `
		SELECT event_type, COUNT(*)
		FROM analytics_events
		WHERE workspace_id = $1 AND occurred_at >= $2
		GROUP BY event_type
		ORDER BY event_type`, workspaceID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.EventType, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *analyticsStore) ListRecent(ctx context.Context, workspaceID int64, limit int32) ([]model.AnalyticsEvent, error) {
	return s.List(ctx, workspaceID, nil, nil, nil, limit, 0)
}

func (s *analyticsStore) List(ctx context.Context, workspaceID int64, eventType *model.AnalyticsEventType, since, until *time.Time, limit, offset int32) ([]model.AnalyticsEvent, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, workspace_id, event_type, actor_user_id, mailbox_id, lead_id, payload, occurred_at
		FROM analytics_events
		WHERE workspace_id = $1
		  AND ($2::text IS NULL OR event_type = $2)
		  AND ($3::timestamptz IS NULL OR occurred_at >= $3)
		  AND ($4::timestamptz IS NULL OR occurred_at < $4)
		ORDER BY occurred_at DESC
		LIMIT $5 OFFSET $6`, workspaceID, eventType, since, until, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AnalyticsEvent
	for rows.Next() {
		var ev model.AnalyticsEvent
		if err := rows.Scan(&ev.ID, &ev.WorkspaceID, &ev.EventType, &ev.ActorUserID,
			&ev.MailboxID, &ev.LeadID, &ev.Payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
