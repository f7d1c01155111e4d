package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"leadmap.app/server/common/id"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/store"
)

var ErrBillingNotConfigured = errors.New("billing is not configured")

// workspaceMetadataKey carries the workspace id through Stripe objects
// so webhook events can be routed back to a tenant.
const workspaceMetadataKey = "workspace_id"

// BillingService fronts Stripe: checkout session creation and the
// webhook that keeps the local subscription row current. Local state
// is a cache of Stripe's; the webhook always wins.
type BillingService struct {
	stores        *store.Stores
	webhookSecret string
	enabled       bool
	logger        *slog.Logger
}

func NewBillingService(stores *store.Stores, secretKey, webhookSecret string, logger *slog.Logger) *BillingService {
	if logger == nil {
		logger = slog.Default()
	}
	if secretKey != "" {
		stripe.Key = secretKey
	}
	return &BillingService{
		stores:        stores,
		webhookSecret: webhookSecret,
		enabled:       secretKey != "" && webhookSecret != "",
		logger:        logger,
	}
}

func (s *BillingService) Enabled() bool {
	return s.enabled
}

// CreateCheckoutSession opens a Stripe Checkout for a workspace
// subscription and returns the redirect URL.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, workspaceID int64, priceID, successURL, cancelURL string) (string, error) {
	if !s.enabled {
		return "", ErrBillingNotConfigured
	}

	workspaceRef := strconv.FormatInt(workspaceID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(workspaceRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{workspaceMetadataKey: workspaceRef},
		},
	}
	params.Context = ctx
	// Checkout creation is not idempotent on Stripe's side; a retried
	// request without a key would open a second session.
	params.SetIdempotencyKey(uuid.NewString())

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}
	return sess.URL, nil
}

// Status returns the workspace's subscription row, if any.
func (s *BillingService) Status(ctx context.Context, workspaceID int64) (*model.Subscription, error) {
	return s.stores.Subscriptions.GetByWorkspace(ctx, workspaceID)
}

// SendingAllowed reports whether the workspace may send campaign email
// and publish posts. Workspaces without a subscription row are on the
// free tier and may send.
func (s *BillingService) SendingAllowed(ctx context.Context, workspaceID int64) (bool, error) {
	sub, err := s.stores.Subscriptions.GetByWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return sub.SendingAllowed(), nil
}

// HandleWebhook verifies and applies one Stripe webhook delivery.
// Unknown event types are acknowledged and ignored.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.enabled {
		return ErrBillingNotConfigured
	}

	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("verifying webhook signature: %w", err)
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("decoding checkout session: %w", err)
		}
		return s.applyCheckoutCompleted(ctx, &sess)
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decoding subscription: %w", err)
		}
		return s.applySubscriptionChange(ctx, &sub)
	default:
		s.logger.DebugContext(ctx, "ignoring stripe event", "type", event.Type)
		return nil
	}
}

func (s *BillingService) applyCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	workspaceID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil {
		return fmt.Errorf("checkout session has no workspace reference: %w", err)
	}

	sub := &model.Subscription{
		ID:          id.New(),
		WorkspaceID: workspaceID,
		Status:      model.SubscriptionStatusActive,
	}
	if sess.Customer != nil {
		sub.StripeCustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		sub.StripeSubID = sess.Subscription.ID
	}

	if err := s.stores.Subscriptions.UpsertByWorkspace(ctx, sub); err != nil {
		return fmt.Errorf("saving subscription: %w", err)
	}
	s.logger.InfoContext(ctx, "checkout completed", "workspace_id", workspaceID)
	return nil
}

func (s *BillingService) applySubscriptionChange(ctx context.Context, stripeSub *stripe.Subscription) error {
	workspaceRef := stripeSub.Metadata[workspaceMetadataKey]
	workspaceID, err := strconv.ParseInt(workspaceRef, 10, 64)
	if err != nil {
		// Subscriptions created outside our checkout flow carry no
		// workspace metadata; there is nothing to update.
		s.logger.WarnContext(ctx, "stripe subscription without workspace metadata",
			"subscription_id", stripeSub.ID)
		return nil
	}

	sub := &model.Subscription{
		ID:          id.New(),
		WorkspaceID: workspaceID,
		StripeSubID: stripeSub.ID,
		Status:      mapStripeStatus(stripeSub.Status),
	}
	if stripeSub.Customer != nil {
		sub.StripeCustomerID = stripeSub.Customer.ID
	}
	if stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 && stripeSub.Items.Data[0].CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(stripeSub.Items.Data[0].CurrentPeriodEnd, 0)
		sub.CurrentPeriodEnd = &periodEnd
	}

	if err := s.stores.Subscriptions.UpsertByWorkspace(ctx, sub); err != nil {
		return fmt.Errorf("saving subscription: %w", err)
	}
	s.logger.InfoContext(ctx, "subscription updated",
		"workspace_id", workspaceID, "status", sub.Status)
	return nil
}

func mapStripeStatus(status stripe.SubscriptionStatus) model.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return model.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return model.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return model.SubscriptionStatusPastDue
	default:
		return model.SubscriptionStatusCanceled
	}
}
