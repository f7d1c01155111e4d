package queue

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func xmsg(values map[string]any) redis.XMessage {
	return redis.XMessage{ID: "1-0", Values: values}
}

func TestParseMessageMailboxSync(t *testing.T) {
	msg, err := ParseMessage(xmsg(map[string]any{
		"task_type":    "mailbox_sync",
		"mailbox_id":   "42",
		"event_log_id": "7",
		"attempt":      "2",
		"trace_id":     "abc123",
	}))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.TaskType != TaskTypeMailboxSync {
		t.Errorf("TaskType = %q", msg.TaskType)
	}
	if msg.MailboxID == nil || *msg.MailboxID != 42 {
		t.Errorf("MailboxID = %v", msg.MailboxID)
	}
	if msg.EventLogID == nil || *msg.EventLogID != 7 {
		t.Errorf("EventLogID = %v", msg.EventLogID)
	}
	if msg.Attempt != 2 {
		t.Errorf("Attempt = %d", msg.Attempt)
	}
	if msg.TraceID != "abc123" {
		t.Errorf("TraceID = %q", msg.TraceID)
	}
}

func TestParseMessageDefaultsAttempt(t *testing.T) {
	msg, err := ParseMessage(xmsg(map[string]any{
		"task_type":  "mailbox_backfill",
		"mailbox_id": "42",
	}))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", msg.Attempt)
	}
}

func TestParseMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr string
	}{
		{
			name:    "missing task type",
			values:  map[string]any{"mailbox_id": "1"},
			wantErr: "missing task_type",
		},
		{
			name:    "unknown task type",
			values:  map[string]any{"task_type": "make_coffee"},
			wantErr: "unknown task_type",
		},
		{
			name:    "sync without event log",
			values:  map[string]any{"task_type": "mailbox_sync", "mailbox_id": "1"},
			wantErr: "event_log_id",
		},
		{
			name:    "campaign step without enrollment",
			values:  map[string]any{"task_type": "campaign_step"},
			wantErr: "enrollment_id",
		},
		{
			name:    "publish without schedule",
			values:  map[string]any{"task_type": "publish_post"},
			wantErr: "schedule_id",
		},
		{
			name:    "enrich without lead",
			values:  map[string]any{"task_type": "enrich_lead"},
			wantErr: "lead_id",
		},
		{
			name:    "index without entity type",
			values:  map[string]any{"task_type": "index_search", "lead_id": "1"},
			wantErr: "entity_type",
		},
		{
			name:    "index without target",
			values:  map[string]any{"task_type": "index_search", "entity_type": "lead"},
			wantErr: "lead_id",
		},
		{
			name:    "index thread with only a lead id",
			values:  map[string]any{"task_type": "index_search", "entity_type": "thread", "lead_id": "1"},
			wantErr: "thread_id",
		},
		{
			name:    "index with unknown entity type",
			values:  map[string]any{"task_type": "index_search", "entity_type": "campaign", "lead_id": "1"},
			wantErr: "unknown entity_type",
		},
		{
			name:    "unparseable id",
			values:  map[string]any{"task_type": "enrich_lead", "lead_id": "banana"},
			wantErr: "parsing lead_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage(xmsg(tt.values))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestMessageValuesRoundTrip(t *testing.T) {
	leadID := int64(9)
	original := Message{
		TaskType:   TaskTypeIndexSearch,
		LeadID:     &leadID,
		EntityType: IndexEntityLead,
		TraceID:    "trace-1",
	}

	// Redis hands values back as strings.
	values := messageValues(original, 3)
	stringified := make(map[string]any, len(values))
	for k, v := range values {
		switch v := v.(type) {
		case string:
			stringified[k] = v
		default:
			stringified[k] = xmsgFormat(v)
		}
	}

	parsed, err := ParseMessage(xmsg(stringified))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if parsed.TaskType != original.TaskType {
		t.Errorf("TaskType = %q", parsed.TaskType)
	}
	if parsed.LeadID == nil || *parsed.LeadID != leadID {
		t.Errorf("LeadID = %v", parsed.LeadID)
	}
	if parsed.EntityType != IndexEntityLead {
		t.Errorf("EntityType = %q", parsed.EntityType)
	}
	if parsed.Attempt != 3 {
		t.Errorf("Attempt = %d", parsed.Attempt)
	}
}

func xmsgFormat(v any) string {
	switch v := v.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 2 * time.Second

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{20, maxRequeueDelay},
	}
	for _, tt := range tests {
		if got := backoffDelay(base, tt.failures); got != tt.want {
			t.Errorf("backoffDelay(%v, %d) = %v, want %v", base, tt.failures, got, tt.want)
		}
	}

	if got := backoffDelay(0, 5); got != 0 {
		t.Errorf("backoffDelay with zero base = %v, want 0", got)
	}
}
