package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

type Subscription struct {
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	CurrentPeriodEnd *time.Time         `json:"current_period_end,omitempty"`
	StripeCustomerID string             `json:"-"`
	StripeSubID      string             `json:"-"`
	Status           SubscriptionStatus `json:"status"`
	ID               int64              `json:"id,string"`
	WorkspaceID      int64              `json:"workspace_id,string"`
}

// SendingAllowed gates campaign sends and social publishes. Reads are
// never gated.
func (s *Subscription) SendingAllowed() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}
