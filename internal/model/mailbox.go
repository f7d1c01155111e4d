package model

import "time"

type Provider string

const (
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
)

type MailboxState string

const (
	MailboxStateActive MailboxState = "active"
	// MailboxStatePaused means the credential was revoked; sync and send
	// stop until the user reconnects.
	MailboxStatePaused MailboxState = "paused"
)

type Mailbox struct {
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	// WatchExpiresAt is the Gmail watch / Graph subscription expiry.
	WatchExpiresAt *time.Time `json:"watch_expires_at,omitempty"`
	// LastHistoryID is the Gmail history cursor. Monotonically
	// non-decreasing; nil until the first sync completes.
	LastHistoryID *uint64 `json:"-"`
	// DeltaLink is the Graph delta cursor for Outlook mailboxes.
	DeltaLink *string `json:"-"`
	// SubscriptionID is the Graph change-notification subscription.
	SubscriptionID *string      `json:"-"`
	Address        string       `json:"address"`
	Provider       Provider     `json:"provider"`
	State          MailboxState `json:"state"`
	ID             int64        `json:"id,string"`
	WorkspaceID    int64        `json:"workspace_id,string"`
	CredentialID   int64        `json:"credential_id,string"`
}
