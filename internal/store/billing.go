package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type subscriptionStore struct {
	q db.Querier
}

func newSubscriptionStore(q db.Querier) SubscriptionStore {
	return &subscriptionStore{q: q}
}

const subscriptionColumns = `id, workspace_id, stripe_customer_id, stripe_subscription_id,
	status, current_period_end, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var sub model.Subscription
	err := row.Scan(&sub.ID, &sub.WorkspaceID, &sub.StripeCustomerID, &sub.StripeSubID,
		&sub.Status, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *subscriptionStore) GetByWorkspace(ctx context.Context, workspaceID int64) (*model.Subscription, error) {
	return scanSubscription(s.q.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE workspace_id = $1`, workspaceID))
}

func (s *subscriptionStore) UpsertByWorkspace(ctx context.Context, sub *model.Subscription) error {
	row, err := scanSubscription(s.q.QueryRow(ctx, `
		INSERT INTO subscriptions (id, workspace_id, stripe_customer_id, stripe_subscription_id, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workspace_id) DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = NOW()
		RETURNING `+subscriptionColumns,
		sub.ID, sub.WorkspaceID, sub.StripeCustomerID, sub.StripeSubID, sub.Status, sub.CurrentPeriodEnd))
	if err != nil {
		return err
	}
	*sub = *row
	return nil
}
