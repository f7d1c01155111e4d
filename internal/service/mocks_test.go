package service_test

import (
	"context"
	"time"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/store"
)

// Hand-rolled mocks over the store interfaces. Only the methods a test
// exercises get a fn field; everything else returns ErrNotFound or nil.

type mockMailboxStore struct {
	getByIDFn                func(ctx context.Context, id int64) (*model.Mailbox, error)
	getByProviderAddressFn   func(ctx context.Context, provider model.Provider, address string) (*model.Mailbox, error)
	getBySubscriptionIDFn    func(ctx context.Context, subscriptionID string) (*model.Mailbox, error)
	setStateFn               func(ctx context.Context, id int64, state model.MailboxState) error
	advanceHistoryIDFn       func(ctx context.Context, id int64, historyID uint64) error
	listByCredentialFn       func(ctx context.Context, credentialID int64) ([]model.Mailbox, error)
	listWatchExpiringBeforeF func(ctx context.Context, before time.Time, limit int32) ([]model.Mailbox, error)
}

func (m *mockMailboxStore) GetByID(ctx context.Context, id int64) (*model.Mailbox, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
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
	if m.setStateFn != nil {
		return m.setStateFn(ctx, id, state)
	}
	return nil
}

func (m *mockMailboxStore) AdvanceHistoryID(ctx context.Context, id int64, historyID uint64) error {
	if m.advanceHistoryIDFn != nil {
		return m.advanceHistoryIDFn(ctx, id, historyID)
	}
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
	if m.listByCredentialFn != nil {
		return m.listByCredentialFn(ctx, credentialID)
	}
	return nil, nil
}

func (m *mockMailboxStore) ListWatchExpiringBefore(ctx context.Context, before time.Time, limit int32) ([]model.Mailbox, error) {
	if m.listWatchExpiringBeforeF != nil {
		return m.listWatchExpiringBeforeF(ctx, before, limit)
	}
	return nil, nil
}

func (m *mockMailboxStore) Delete(ctx context.Context, id int64) error { return nil }

type mockEventLogStore struct {
	insertFn        func(ctx context.Context, ev *model.SyncEventLog) (bool, error)
	getByIDFn       func(ctx context.Context, id int64) (*model.SyncEventLog, error)
	markProcessedFn func(ctx context.Context, id int64) error
	markFailedFn    func(ctx context.Context, id int64, errMsg *string) error
}

func (m *mockEventLogStore) GetByID(ctx context.Context, id int64) (*model.SyncEventLog, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockEventLogStore) Insert(ctx context.Context, ev *model.SyncEventLog) (bool, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, ev)
	}
	return true, nil
}

func (m *mockEventLogStore) MarkProcessed(ctx context.Context, id int64) error {
	if m.markProcessedFn != nil {
		return m.markProcessedFn(ctx, id)
	}
	return nil
}

func (m *mockEventLogStore) MarkFailed(ctx context.Context, id int64, errMsg *string) error {
	if m.markFailedFn != nil {
		return m.markFailedFn(ctx, id, errMsg)
	}
	return nil
}

type mockUserStore struct {
	getByIDFn       func(ctx context.Context, id int64) (*model.User, error)
	getByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	upsertByEmailFn func(ctx context.Context, user *model.User) error
}

func (m *mockUserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, store.ErrNotFound
}

func (m *mockUserStore) UpsertByEmail(ctx context.Context, user *model.User) error {
	if m.upsertByEmailFn != nil {
		return m.upsertByEmailFn(ctx, user)
	}
	return nil
}

func (m *mockUserStore) Update(ctx context.Context, user *model.User) error { return nil }

type mockSessionStore struct {
	getValidFn      func(ctx context.Context, id int64) (*model.Session, error)
	createFn        func(ctx context.Context, session *model.Session) error
	deleteFn        func(ctx context.Context, id int64) error
	deleteExpiredFn func(ctx context.Context) error
}

func (m *mockSessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	if m.getValidFn != nil {
		return m.getValidFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockSessionStore) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionStore) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockSessionStore) DeleteByUser(ctx context.Context, userID int64) error { return nil }

func (m *mockSessionStore) DeleteExpired(ctx context.Context) error {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return nil
}

type mockWorkspaceStore struct {
	getByIDFn      func(ctx context.Context, id int64) (*model.Workspace, error)
	getMemberFn    func(ctx context.Context, workspaceID, userID int64) (*model.WorkspaceMember, error)
	addMemberFn    func(ctx context.Context, member *model.WorkspaceMember) error
	removeMemberFn func(ctx context.Context, workspaceID, userID int64) error
	createFn       func(ctx context.Context, ws *model.Workspace) error
	getBySlugFn    func(ctx context.Context, slug string) (*model.Workspace, error)
}

func (m *mockWorkspaceStore) GetByID(ctx context.Context, id int64) (*model.Workspace, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockWorkspaceStore) GetBySlug(ctx context.Context, slug string) (*model.Workspace, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, store.ErrNotFound
}

func (m *mockWorkspaceStore) Create(ctx context.Context, ws *model.Workspace) error {
	if m.createFn != nil {
		return m.createFn(ctx, ws)
	}
	return nil
}

func (m *mockWorkspaceStore) Update(ctx context.Context, ws *model.Workspace) error { return nil }

func (m *mockWorkspaceStore) Delete(ctx context.Context, id int64) error { return nil }

func (m *mockWorkspaceStore) ListByUser(ctx context.Context, userID int64) ([]model.Workspace, error) {
	return nil, nil
}

func (m *mockWorkspaceStore) AddMember(ctx context.Context, member *model.WorkspaceMember) error {
	if m.addMemberFn != nil {
		return m.addMemberFn(ctx, member)
	}
	return nil
}

func (m *mockWorkspaceStore) GetMember(ctx context.Context, workspaceID, userID int64) (*model.WorkspaceMember, error) {
	if m.getMemberFn != nil {
		return m.getMemberFn(ctx, workspaceID, userID)
	}
	return nil, store.ErrNotFound
}

func (m *mockWorkspaceStore) ListMembers(ctx context.Context, workspaceID int64) ([]model.WorkspaceMember, error) {
	return nil, nil
}

func (m *mockWorkspaceStore) RemoveMember(ctx context.Context, workspaceID, userID int64) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(ctx, workspaceID, userID)
	}
	return nil
}

type mockCredentialStore struct {
	getByIDFn func(ctx context.Context, id int64) (*model.Credential, error)
	revokeFn  func(ctx context.Context, id int64) error
}

func (m *mockCredentialStore) GetByID(ctx context.Context, id int64) (*model.Credential, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockCredentialStore) Create(ctx context.Context, cred *model.Credential) error { return nil }

func (m *mockCredentialStore) UpdateTokens(ctx context.Context, id int64, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	return nil
}

func (m *mockCredentialStore) Revoke(ctx context.Context, id int64) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, id)
	}
	return nil
}

func (m *mockCredentialStore) ListActiveExpiringBefore(ctx context.Context, before time.Time, limit int32) ([]model.Credential, error) {
	return nil, nil
}

func (m *mockCredentialStore) Delete(ctx context.Context, id int64) error { return nil }

// mockProducer records every enqueued task.
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

// mockTxRunner hands the same stores to the callback; there is no
// transaction to roll back in tests.
type mockTxRunner struct {
	stores *store.Stores
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores *store.Stores) error) error {
	return fn(m.stores)
}
