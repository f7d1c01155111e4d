package model

import (
	"encoding/json"
	"time"
)

type AnalyticsEventType string

const (
	AnalyticsEmailReceived   AnalyticsEventType = "email_received"
	AnalyticsEmailSent       AnalyticsEventType = "email_sent"
	AnalyticsLeadCreated     AnalyticsEventType = "lead_created"
	AnalyticsLeadStageMoved  AnalyticsEventType = "lead_stage_moved"
	AnalyticsCampaignStep    AnalyticsEventType = "campaign_step_sent"
	AnalyticsPostPublished   AnalyticsEventType = "post_published"
	AnalyticsMailboxAttached AnalyticsEventType = "mailbox_attached"
)

// AnalyticsEvent is append-only. Rows are written by services as a side
// effect of the action they record and are never updated.
type AnalyticsEvent struct {
	OccurredAt  time.Time          `json:"occurred_at"`
	EventType   AnalyticsEventType `json:"event_type"`
	Payload     json.RawMessage    `json:"payload,omitempty"`
	ID          int64              `json:"id,string"`
	WorkspaceID int64              `json:"workspace_id,string"`
	ActorUserID *int64             `json:"actor_user_id,string,omitempty"`
	MailboxID   *int64             `json:"mailbox_id,string,omitempty"`
	LeadID      *int64             `json:"lead_id,string,omitempty"`
}
