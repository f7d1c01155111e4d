package msgraph

import "testing"

func TestDecodeNotifications(t *testing.T) {
	body := []byte(`{
		"value": [
			{
				"subscriptionId": "sub-1",
				"changeType": "created",
				"clientState": "state-token",
				"resource": "Users/u1/Messages/m1",
				"resourceData": {"id": "m1"}
			},
			{
				"subscriptionId": "sub-2",
				"changeType": "updated",
				"clientState": "state-token",
				"resource": "Users/u2/Messages/m2",
				"resourceData": {"id": "m2"}
			}
		]
	}`)

	notifications, err := DecodeNotifications(body)
	if err != nil {
		t.Fatalf("DecodeNotifications: %v", err)
	}
	if len(notifications) != 2 {
		t.Fatalf("got %d notifications, want 2", len(notifications))
	}

	first := notifications[0]
	if first.SubscriptionID != "sub-1" {
		t.Errorf("SubscriptionID = %q", first.SubscriptionID)
	}
	if first.ChangeType != "created" {
		t.Errorf("ChangeType = %q", first.ChangeType)
	}
	if first.ClientState != "state-token" {
		t.Errorf("ClientState = %q", first.ClientState)
	}
	if first.ResourceData.ID != "m1" {
		t.Errorf("ResourceData.ID = %q", first.ResourceData.ID)
	}
}

func TestDecodeNotificationsEmptyBatch(t *testing.T) {
	notifications, err := DecodeNotifications([]byte(`{"value": []}`))
	if err != nil {
		t.Fatalf("DecodeNotifications: %v", err)
	}
	if len(notifications) != 0 {
		t.Errorf("got %d notifications, want 0", len(notifications))
	}
}

func TestDecodeNotificationsBadJSON(t *testing.T) {
	if _, err := DecodeNotifications([]byte("not json")); err == nil {
		t.Error("expected error for malformed body")
	}
}
