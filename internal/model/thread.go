package model

import "time"

type EmailThread struct {
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
	Subject          string     `json:"subject"`
	Snippet          string     `json:"snippet"`
	ProviderThreadID string     `json:"provider_thread_id"`
	ID               int64      `json:"id,string"`
	WorkspaceID      int64      `json:"workspace_id,string"`
	MailboxID        int64      `json:"mailbox_id,string"`
	// LeadID links the thread to a CRM lead when the counterparty
	// address matches a known lead contact.
	LeadID       *int64 `json:"lead_id,string,omitempty"`
	MessageCount int32  `json:"message_count"`
	IsUnread     bool   `json:"is_unread"`
	IsStarred    bool   `json:"is_starred"`
}

type EmailMessage struct {
	CreatedAt         time.Time `json:"created_at"`
	InternalDate      time.Time `json:"internal_date"`
	ProviderMessageID string    `json:"provider_message_id"`
	FromAddress       string    `json:"from_address"`
	FromName          string    `json:"from_name"`
	Subject           string    `json:"subject"`
	Snippet           string    `json:"snippet"`
	BodyText          string    `json:"body_text,omitempty"`
	BodyHTML          string    `json:"body_html,omitempty"`
	ToAddresses       []string  `json:"to_addresses"`
	Labels            []string  `json:"labels,omitempty"`
	ID                int64     `json:"id,string"`
	ThreadID          int64     `json:"thread_id,string"`
	MailboxID         int64     `json:"mailbox_id,string"`
	IsUnread          bool      `json:"is_unread"`
}
