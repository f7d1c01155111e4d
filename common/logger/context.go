package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where business
// context (workspace_id, mailbox_id, etc.) is automatically included in all log statements.
type LogFields struct {
	WorkspaceID *int64  // Tenant workspace ID
	MailboxID   *int64  // Connected mailbox ID
	ThreadID    *int64  // Email thread ID
	EventLogID  *int64  // Sync event log ID that triggered this work
	JobID       *int64  // Queue job / schedule / enrollment ID
	MessageID   *string // Redis stream message ID
	EventType   *string // Event type (e.g., "gmail_history", "graph_delta")
	Component   string  // Component name (OTel semantic convention style, e.g., "leadmap.worker.sync")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.WorkspaceID != nil {
		result.WorkspaceID = new.WorkspaceID
	}
	if new.MailboxID != nil {
		result.MailboxID = new.MailboxID
	}
	if new.ThreadID != nil {
		result.ThreadID = new.ThreadID
	}
	if new.EventLogID != nil {
		result.EventLogID = new.EventLogID
	}
	if new.JobID != nil {
		result.JobID = new.JobID
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.EventType != nil {
		result.EventType = new.EventType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{MailboxID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like payloads or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
