package model

import "time"

type SocialProvider string

const (
	SocialProviderX         SocialProvider = "x"
	SocialProviderLinkedIn  SocialProvider = "linkedin"
	SocialProviderFacebook  SocialProvider = "facebook"
	SocialProviderInstagram SocialProvider = "instagram"
)

type SocialAccount struct {
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Handle       string         `json:"handle"`
	Provider     SocialProvider `json:"provider"`
	ID           int64          `json:"id,string"`
	WorkspaceID  int64          `json:"workspace_id,string"`
	CredentialID int64          `json:"credential_id,string"`
}

type SocialPost struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Body        string    `json:"body"`
	MediaURLs   []string  `json:"media_urls,omitempty"`
	ID          int64     `json:"id,string"`
	WorkspaceID int64     `json:"workspace_id,string"`
}

type ScheduleStatus string

const (
	ScheduleStatusQueued     ScheduleStatus = "queued"
	ScheduleStatusPublishing ScheduleStatus = "publishing"
	ScheduleStatusPublished  ScheduleStatus = "published"
	ScheduleStatusFailed     ScheduleStatus = "failed"
)

// PostSchedule ties a post to an account at a time. Execution claims
// the row (queued -> publishing) so two workers never publish the same
// schedule.
type PostSchedule struct {
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	// ExternalPostID is the provider's id for the published post.
	ExternalPostID *string        `json:"external_post_id,omitempty"`
	Status         ScheduleStatus `json:"status"`
	ID             int64          `json:"id,string"`
	PostID         int64          `json:"post_id,string"`
	AccountID      int64          `json:"account_id,string"`
	WorkspaceID    int64          `json:"workspace_id,string"`
	Attempts       int32          `json:"attempts"`
}
