package model

import (
	"encoding/json"
	"time"
)

// SyncEventLog is the ingestion audit row. One row per accepted
// provider notification; the dedupe key is unique so a redelivered
// notification inserts nothing and enqueues nothing.
type SyncEventLog struct {
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	ProcessingError *string         `json:"processing_error,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	Source          string          `json:"source"`
	EventType       string          `json:"event_type"`
	DedupeKey       string          `json:"dedupe_key"`
	ID              int64           `json:"id,string"`
	WorkspaceID     int64           `json:"workspace_id,string"`
	MailboxID       int64           `json:"mailbox_id,string"`
}
