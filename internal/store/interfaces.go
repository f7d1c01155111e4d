package store

import (
	"context"
	"errors"
	"time"

	"leadmap.app/server/internal/model"
)

var ErrNotFound = errors.New("not found")

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertByEmail creates the user or refreshes name/avatar on sign-in.
	UpsertByEmail(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
}

type SessionStore interface {
	GetValid(ctx context.Context, id int64) (*model.Session, error) // checks expiry
	Create(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id int64) error
	DeleteByUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context) error
}

type WorkspaceStore interface {
	GetByID(ctx context.Context, id int64) (*model.Workspace, error)
	GetBySlug(ctx context.Context, slug string) (*model.Workspace, error)
	Create(ctx context.Context, ws *model.Workspace) error
	Update(ctx context.Context, ws *model.Workspace) error
	Delete(ctx context.Context, id int64) error // soft delete
	ListByUser(ctx context.Context, userID int64) ([]model.Workspace, error)

	AddMember(ctx context.Context, member *model.WorkspaceMember) error
	GetMember(ctx context.Context, workspaceID, userID int64) (*model.WorkspaceMember, error)
	ListMembers(ctx context.Context, workspaceID int64) ([]model.WorkspaceMember, error)
	RemoveMember(ctx context.Context, workspaceID, userID int64) error
}

type MailboxStore interface {
	GetByID(ctx context.Context, id int64) (*model.Mailbox, error)
	// GetByProviderAddress resolves the mailbox a provider notification
	// belongs to. Push payloads carry only the address.
	GetByProviderAddress(ctx context.Context, provider model.Provider, address string) (*model.Mailbox, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Mailbox, error)
	Create(ctx context.Context, mb *model.Mailbox) error
	SetState(ctx context.Context, id int64, state model.MailboxState) error
	// AdvanceHistoryID moves the Gmail cursor forward. A value behind the
	// stored cursor is a no-op.
	AdvanceHistoryID(ctx context.Context, id int64, historyID uint64) error
	SetDeltaLink(ctx context.Context, id int64, deltaLink string) error
	SetWatch(ctx context.Context, id int64, expiresAt time.Time, subscriptionID *string) error
	SetLastSyncedAt(ctx context.Context, id int64, at time.Time) error
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Mailbox, error)
	ListByCredential(ctx context.Context, credentialID int64) ([]model.Mailbox, error)
	ListWatchExpiringBefore(ctx context.Context, before time.Time, limit int32) ([]model.Mailbox, error)
	Delete(ctx context.Context, id int64) error
}

type CredentialStore interface {
	GetByID(ctx context.Context, id int64) (*model.Credential, error)
	Create(ctx context.Context, cred *model.Credential) error
	// UpdateTokens persists rotated ciphertext after a refresh. A nil
	// refresh token keeps the stored one.
	UpdateTokens(ctx context.Context, id int64, accessToken string, refreshToken *string, expiresAt *time.Time) error
	Revoke(ctx context.Context, id int64) error
	ListActiveExpiringBefore(ctx context.Context, before time.Time, limit int32) ([]model.Credential, error)
	Delete(ctx context.Context, id int64) error
}

type ThreadStore interface {
	GetByID(ctx context.Context, id int64) (*model.EmailThread, error)
	GetByProviderThreadID(ctx context.Context, mailboxID int64, providerThreadID string) (*model.EmailThread, error)
	// Upsert inserts or refreshes on (mailbox_id, provider_thread_id).
	Upsert(ctx context.Context, thread *model.EmailThread) error
	SetRead(ctx context.Context, id int64, unread bool) error
	SetStarred(ctx context.Context, id int64, starred bool) error
	LinkLead(ctx context.Context, id int64, leadID int64) error
	ListByMailbox(ctx context.Context, mailboxID int64, limit, offset int32) ([]model.EmailThread, error)
	ListByLead(ctx context.Context, leadID int64) ([]model.EmailThread, error)
}

type MessageStore interface {
	GetByID(ctx context.Context, id int64) (*model.EmailMessage, error)
	// Insert is idempotent on (mailbox_id, provider_message_id); it
	// reports whether a row was actually written.
	Insert(ctx context.Context, msg *model.EmailMessage) (bool, error)
	ListByThread(ctx context.Context, threadID int64) ([]model.EmailMessage, error)
}

type LeadStore interface {
	GetByID(ctx context.Context, id int64) (*model.Lead, error)
	GetByEmail(ctx context.Context, workspaceID int64, email string) (*model.Lead, error)
	Create(ctx context.Context, lead *model.Lead) error
	// UpsertByPropertyURL is the import path: listings re-imported with
	// the same property_url update in place.
	UpsertByPropertyURL(ctx context.Context, lead *model.Lead) error
	Update(ctx context.Context, lead *model.Lead) error
	SetStage(ctx context.Context, id int64, stage model.LeadStage) error
	MarkEnriched(ctx context.Context, id int64, ownerName, ownerPhone, ownerEmail *string, extra []byte) error
	List(ctx context.Context, workspaceID int64, stage *model.LeadStage, limit, offset int32) ([]model.Lead, error)
	Delete(ctx context.Context, id int64) error
}

type CampaignStore interface {
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	Create(ctx context.Context, c *model.Campaign) error
	Update(ctx context.Context, c *model.Campaign) error
	SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error
	ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Campaign, error)
	Delete(ctx context.Context, id int64) error

	CreateStep(ctx context.Context, step *model.CampaignStep) error
	GetStep(ctx context.Context, campaignID int64, position int32) (*model.CampaignStep, error)
	ListSteps(ctx context.Context, campaignID int64) ([]model.CampaignStep, error)
	DeleteStep(ctx context.Context, id int64) error

	CreateEnrollment(ctx context.Context, e *model.CampaignEnrollment) error
	GetEnrollment(ctx context.Context, id int64) (*model.CampaignEnrollment, error)
	// ClaimDueEnrollments atomically flips due active enrollments to
	// claimed so concurrent pollers never double-send a step.
	ClaimDueEnrollments(ctx context.Context, now time.Time, limit int32) ([]model.CampaignEnrollment, error)
	AdvanceEnrollment(ctx context.Context, id int64, nextPosition int32, nextStepAt *time.Time) error
	CompleteEnrollment(ctx context.Context, id int64) error
	FailEnrollment(ctx context.Context, id int64, errMsg string) error
	RetryEnrollment(ctx context.Context, id int64, nextStepAt time.Time, errMsg string) error
	// StopEnrollmentsByLead ends sequences when the lead replies.
	StopEnrollmentsByLead(ctx context.Context, leadID int64) (int64, error)
}

type SocialStore interface {
	GetAccount(ctx context.Context, id int64) (*model.SocialAccount, error)
	CreateAccount(ctx context.Context, acc *model.SocialAccount) error
	ListAccountsByWorkspace(ctx context.Context, workspaceID int64) ([]model.SocialAccount, error)
	DeleteAccount(ctx context.Context, id int64) error

	GetPost(ctx context.Context, id int64) (*model.SocialPost, error)
	CreatePost(ctx context.Context, post *model.SocialPost) error
	UpdatePost(ctx context.Context, post *model.SocialPost) error
	DeletePost(ctx context.Context, id int64) error

	GetSchedule(ctx context.Context, id int64) (*model.PostSchedule, error)
	CreateSchedule(ctx context.Context, sched *model.PostSchedule) error
	// ClaimDueSchedules flips due queued schedules to publishing.
	ClaimDueSchedules(ctx context.Context, now time.Time, limit int32) ([]model.PostSchedule, error)
	MarkSchedulePublished(ctx context.Context, id int64, externalPostID string, publishedAt time.Time) error
	RequeueSchedule(ctx context.Context, id int64, at time.Time, errMsg string) error
	FailSchedule(ctx context.Context, id int64, errMsg string) error
	ListSchedulesByWorkspace(ctx context.Context, workspaceID int64, limit, offset int32) ([]model.PostSchedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
}

type EventLogStore interface {
	GetByID(ctx context.Context, id int64) (*model.SyncEventLog, error)
	// Insert reports false when the dedupe key already exists; the caller
	// must not enqueue work for a duplicate.
	Insert(ctx context.Context, ev *model.SyncEventLog) (bool, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg *string) error
}

type SubscriptionStore interface {
	GetByWorkspace(ctx context.Context, workspaceID int64) (*model.Subscription, error)
	// UpsertByWorkspace applies Stripe webhook state. Last write wins.
	UpsertByWorkspace(ctx context.Context, sub *model.Subscription) error
}

// TypeCount is one row of an analytics rollup.
type TypeCount struct {
	EventType model.AnalyticsEventType `json:"event_type"`
	Count     int64                    `json:"count"`
}

type AnalyticsStore interface {
	Insert(ctx context.Context, ev *model.AnalyticsEvent) error
	CountByTypeSince(ctx context.Context, workspaceID int64, since time.Time) ([]TypeCount, error)
	ListRecent(ctx context.Context, workspaceID int64, limit int32) ([]model.AnalyticsEvent, error)
	List(ctx context.Context, workspaceID int64, eventType *model.AnalyticsEventType, since, until *time.Time, limit, offset int32) ([]model.AnalyticsEvent, error)
}
