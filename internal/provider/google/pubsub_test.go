package google

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func pushBody(t *testing.T, payload any, messageID string) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	body, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"data":      base64.StdEncoding.EncodeToString(data),
			"messageId": messageID,
		},
		"subscription": "projects/p/subscriptions/s",
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return body
}

func TestDecodePushRequest(t *testing.T) {
	body := pushBody(t, map[string]any{
		"emailAddress": "agent@example.com",
		"historyId":    98765,
	}, "msg-1")

	n, messageID, err := DecodePushRequest(body)
	if err != nil {
		t.Fatalf("DecodePushRequest: %v", err)
	}
	if n.EmailAddress != "agent@example.com" {
		t.Errorf("EmailAddress = %q", n.EmailAddress)
	}
	if n.HistoryID != 98765 {
		t.Errorf("HistoryID = %d", n.HistoryID)
	}
	if messageID != "msg-1" {
		t.Errorf("messageID = %q", messageID)
	}
}

func TestDecodePushRequestRejectsMissingAddress(t *testing.T) {
	body := pushBody(t, map[string]any{"historyId": 1}, "msg-2")
	if _, _, err := DecodePushRequest(body); err == nil {
		t.Error("expected error for notification without emailAddress")
	}
}

func TestDecodePushRequestRejectsBadBase64(t *testing.T) {
	body := []byte(`{"message":{"data":"%%%not-base64%%%","messageId":"m"}}`)
	if _, _, err := DecodePushRequest(body); err == nil {
		t.Error("expected error for undecodable data")
	}
}

func TestDecodePushRequestRejectsBadJSON(t *testing.T) {
	if _, _, err := DecodePushRequest([]byte("{")); err == nil {
		t.Error("expected error for malformed envelope")
	}
}
