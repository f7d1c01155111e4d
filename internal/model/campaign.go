package model

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft   CampaignStatus = "draft"
	CampaignStatusActive  CampaignStatus = "active"
	CampaignStatusPaused  CampaignStatus = "paused"
	CampaignStatusStopped CampaignStatus = "stopped"
)

type Campaign struct {
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Name        string         `json:"name"`
	Status      CampaignStatus `json:"status"`
	ID          int64          `json:"id,string"`
	WorkspaceID int64          `json:"workspace_id,string"`
	// MailboxID is the mailbox campaign emails are sent through.
	MailboxID int64 `json:"mailbox_id,string"`
}

// CampaignStep is one email in a sequence. DelayHours is the offset
// from the previous step (from enrollment for the first step).
type CampaignStep struct {
	CreatedAt    time.Time `json:"created_at"`
	Subject      string    `json:"subject"`
	BodyTemplate string    `json:"body_template"`
	ID           int64     `json:"id,string"`
	CampaignID   int64     `json:"campaign_id,string"`
	Position     int32     `json:"position"`
	DelayHours   int32     `json:"delay_hours"`
}

type EnrollmentStatus string

const (
	EnrollmentStatusActive EnrollmentStatus = "active"
	// EnrollmentStatusClaimed marks an enrollment picked up by the
	// scheduler and in flight on the queue.
	EnrollmentStatusClaimed   EnrollmentStatus = "claimed"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusStopped   EnrollmentStatus = "stopped"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
)

type CampaignEnrollment struct {
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	NextStepAt *time.Time       `json:"next_step_at,omitempty"`
	LastError  *string          `json:"last_error,omitempty"`
	Status     EnrollmentStatus `json:"status"`
	ID         int64            `json:"id,string"`
	CampaignID int64            `json:"campaign_id,string"`
	LeadID     int64            `json:"lead_id,string"`
	// NextPosition is the position of the step to execute next.
	NextPosition int32 `json:"next_position"`
	Attempts     int32 `json:"attempts"`
}
