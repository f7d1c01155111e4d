package msgraph

import (
	"encoding/json"
	"fmt"
)

// ChangeNotification is one entry of a Graph webhook delivery. A
// single POST can batch notifications for many subscriptions.
type ChangeNotification struct {
	SubscriptionID string `json:"subscriptionId"`
	ChangeType     string `json:"changeType"`
	ClientState    string `json:"clientState"`
	Resource       string `json:"resource"`
	ResourceData   struct {
		ID string `json:"id"`
	} `json:"resourceData"`
}

type notificationEnvelope struct {
	Value []ChangeNotification `json:"value"`
}

// DecodeNotifications parses a Graph webhook body.
func DecodeNotifications(body []byte) ([]ChangeNotification, error) {
	var envelope notificationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parsing graph notification: %w", err)
	}
	return envelope.Value, nil
}
