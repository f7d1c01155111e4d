package webhook_test

import (
	"context"
	"time"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/store"
)

type mockMailboxStore struct {
	getByProviderAddressFn func(ctx context.Context, provider model.Provider, address string) (*model.Mailbox, error)
	getBySubscriptionIDFn  func(ctx context.Context, subscriptionID string) (*model.Mailbox, error)
}

func (m *mockMailboxStore) GetByID(ctx context.Context, id int64) (*model.Mailbox, error) {
	return nil, store.ErrNotFound
}

func (m *mockMailboxStore) GetByProviderAddress(ctx context.Context, provider model.Provider, address string) (*model.Mailbox, error) {
	if m.getByProviderAddressFn != nil {
		return m.getByProviderAddressFn(ctx, provider, address)
	}
	return nil, store.ErrNotFound
}

func (m *mockMailboxStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Mailbox, error) {
	if m.getBySubscriptionIDFn != nil {
		return m.getBySubscriptionIDFn(ctx, subscriptionID)
	}
	return nil, store.ErrNotFound
}

func (m *mockMailboxStore) Create(ctx context.Context, mb *model.Mailbox) error { return nil }

func (m *mockMailboxStore) SetState(ctx context.Context, id int64, state model.MailboxState) error {
	return nil
}

func (m *mockMailboxStore) AdvanceHistoryID(ctx context.Context, id int64, historyID uint64) error {
	return nil
}

func (m *mockMailboxStore) SetDeltaLink(ctx context.Context, id int64, deltaLink string) error {
	return nil
}

func (m *mockMailboxStore) SetWatch(ctx context.Context, id int64, expiresAt time.Time, subscriptionID *string) error {
	return nil
}

func (m *mockMailboxStore) SetLastSyncedAt(ctx context.Context, id int64, at time.Time) error {
	return nil
}

func (m *mockMailboxStore) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Mailbox, error) {
	return nil, nil
}

func (m *mockMailboxStore) ListByCredential(ctx context.Context, credentialID int64) ([]model.Mailbox, error) {
	return nil, nil
}

func (m *mockMailboxStore) ListWatchExpiringBefore(ctx context.Context, before time.Time, limit int32) ([]model.Mailbox, error) {
	return nil, nil
}

func (m *mockMailboxStore) Delete(ctx context.Context, id int64) error { return nil }

type mockEventLogStore struct {
	insertFn func(ctx context.Context, ev *model.SyncEventLog) (bool, error)
}

func (m *mockEventLogStore) GetByID(ctx context.Context, id int64) (*model.SyncEventLog, error) {
	return nil, store.ErrNotFound
}

func (m *mockEventLogStore) Insert(ctx context.Context, ev *model.SyncEventLog) (bool, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, ev)
	}
	return true, nil
}

func (m *mockEventLogStore) MarkProcessed(ctx context.Context, id int64) error { return nil }

func (m *mockEventLogStore) MarkFailed(ctx context.Context, id int64, errMsg *string) error {
	return nil
}

type mockProducer struct {
	enqueueFn func(ctx context.Context, msg queue.TaskMessage) error
	enqueued  []queue.TaskMessage
}

func (m *mockProducer) Enqueue(ctx context.Context, msg queue.TaskMessage) error {
	if m.enqueueFn != nil {
		if err := m.enqueueFn(ctx, msg); err != nil {
			return err
		}
	}
	m.enqueued = append(m.enqueued, msg)
	return nil
}

func (m *mockProducer) Close() error { return nil }

type mockTxRunner struct {
	stores *store.Stores
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores *store.Stores) error) error {
	return fn(m.stores)
}
