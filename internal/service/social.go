package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"leadmap.app/server/common/id"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider"
	"leadmap.app/server/internal/provider/social"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/store"
)

var ErrScheduleInPast = errors.New("scheduled time is in the past")

// maxPublishAttempts bounds transient publish retries before a
// schedule is failed.
const maxPublishAttempts = 3

// publishHoldDelay is how long a claimed schedule waits when the
// workspace subscription is past due.
const publishHoldDelay = 6 * time.Hour

// SocialService manages social accounts, posts, and their publishing
// schedules, and executes publishes on the worker.
type SocialService struct {
	stores    *store.Stores
	broker    *CredentialBroker
	publisher social.Publisher
	producer  queue.Producer
	logger    *slog.Logger
}

func NewSocialService(stores *store.Stores, broker *CredentialBroker, publisher social.Publisher, producer queue.Producer, logger *slog.Logger) *SocialService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocialService{
		stores:    stores,
		broker:    broker,
		publisher: publisher,
		producer:  producer,
		logger:    logger,
	}
}

// ConnectAccount stores a provider access token and the account it
// belongs to. Social providers hand tokens to the frontend flow, so
// unlike mailboxes we receive the token directly.
func (s *SocialService) ConnectAccount(ctx context.Context, workspaceID, userID int64, providerName model.SocialProvider, handle, accessToken string) (*model.SocialAccount, error) {
	sealed, err := s.broker.vault.Seal(accessToken)
	if err != nil {
		return nil, fmt.Errorf("sealing access token: %w", err)
	}

	cred := &model.Credential{
		ID:          id.New(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Kind:        model.CredentialKindSocial,
		Status:      model.CredentialStatusActive,
		Provider:    string(providerName),
		AccessToken: sealed,
	}
	if err := s.stores.Credentials.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("creating credential: %w", err)
	}

	account := &model.SocialAccount{
		ID:           id.New(),
		WorkspaceID:  workspaceID,
		CredentialID: cred.ID,
		Provider:     providerName,
		Handle:       handle,
	}
	if err := s.stores.Social.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return account, nil
}

func (s *SocialService) ListAccounts(ctx context.Context, workspaceID int64) ([]model.SocialAccount, error) {
	return s.stores.Social.ListAccountsByWorkspace(ctx, workspaceID)
}

func (s *SocialService) DisconnectAccount(ctx context.Context, workspaceID, accountID int64) error {
	account, err := s.getAccount(ctx, workspaceID, accountID)
	if err != nil {
		return err
	}
	if err := s.stores.Social.DeleteAccount(ctx, account.ID); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if err := s.stores.Credentials.Delete(ctx, account.CredentialID); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

func (s *SocialService) getAccount(ctx context.Context, workspaceID, accountID int64) (*model.SocialAccount, error) {
	account, err := s.stores.Social.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	return account, nil
}

func (s *SocialService) CreatePost(ctx context.Context, workspaceID int64, body string, mediaURLs []string) (*model.SocialPost, error) {
	post := &model.SocialPost{
		ID:          id.New(),
		WorkspaceID: workspaceID,
		Body:        body,
		MediaURLs:   mediaURLs,
	}
	if err := s.stores.Social.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	return post, nil
}

func (s *SocialService) GetPost(ctx context.Context, workspaceID, postID int64) (*model.SocialPost, error) {
	post, err := s.stores.Social.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	return post, nil
}

func (s *SocialService) UpdatePost(ctx context.Context, workspaceID, postID int64, body string, mediaURLs []string) (*model.SocialPost, error) {
	post, err := s.GetPost(ctx, workspaceID, postID)
	if err != nil {
		return nil, err
	}
	post.Body = body
	post.MediaURLs = mediaURLs
	if err := s.stores.Social.UpdatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}
	return post, nil
}

func (s *SocialService) DeletePost(ctx context.Context, workspaceID, postID int64) error {
	if _, err := s.GetPost(ctx, workspaceID, postID); err != nil {
		return err
	}
	return s.stores.Social.DeletePost(ctx, postID)
}

// Schedule queues a post for publishing on an account at a time.
func (s *SocialService) Schedule(ctx context.Context, workspaceID, postID, accountID int64, at time.Time) (*model.PostSchedule, error) {
	if at.Before(time.Now()) {
		return nil, ErrScheduleInPast
	}
	if _, err := s.GetPost(ctx, workspaceID, postID); err != nil {
		return nil, err
	}
	if _, err := s.getAccount(ctx, workspaceID, accountID); err != nil {
		return nil, err
	}

	sched := &model.PostSchedule{
		ID:          id.New(),
		WorkspaceID: workspaceID,
		PostID:      postID,
		AccountID:   accountID,
		Status:      model.ScheduleStatusQueued,
		ScheduledAt: at,
	}
	if err := s.stores.Social.CreateSchedule(ctx, sched); err != nil {
		return nil, fmt.Errorf("creating schedule: %w", err)
	}
	return sched, nil
}

func (s *SocialService) ListSchedules(ctx context.Context, workspaceID int64, limit, offset int32) ([]model.PostSchedule, error) {
	return s.stores.Social.ListSchedulesByWorkspace(ctx, workspaceID, limit, offset)
}

func (s *SocialService) DeleteSchedule(ctx context.Context, workspaceID, scheduleID int64) error {
	sched, err := s.stores.Social.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sched.WorkspaceID != workspaceID {
		return store.ErrNotFound
	}
	return s.stores.Social.DeleteSchedule(ctx, scheduleID)
}

// DispatchDueSchedules claims due schedules and enqueues a publish
// task per claim. Called on the scheduler poll.
func (s *SocialService) DispatchDueSchedules(ctx context.Context, limit int32) (int, error) {
	claimed, err := s.stores.Social.ClaimDueSchedules(ctx, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("claiming due schedules: %w", err)
	}

	for i := range claimed {
		sched := &claimed[i]
		if err := s.producer.Enqueue(ctx, queue.TaskMessage{
			TaskType:   queue.TaskTypePublishPost,
			ScheduleID: &sched.ID,
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue publish",
				"schedule_id", sched.ID, "error", err)
			if resetErr := s.stores.Social.RequeueSchedule(ctx, sched.ID, sched.ScheduledAt, "enqueue failed"); resetErr != nil {
				s.logger.ErrorContext(ctx, "failed to release claimed schedule",
					"schedule_id", sched.ID, "error", resetErr)
			}
		}
	}
	return len(claimed), nil
}

// PublishSchedule publishes one claimed schedule. Transient provider
// errors requeue with backoff; permanent ones fail the schedule.
func (s *SocialService) PublishSchedule(ctx context.Context, scheduleID int64) error {
	sched, err := s.stores.Social.GetSchedule(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "publish task for missing schedule", "schedule_id", scheduleID)
			return nil
		}
		return fmt.Errorf("loading schedule: %w", err)
	}
	if sched.Status != model.ScheduleStatusPublishing {
		return nil
	}

	if !s.publishAllowed(ctx, sched.WorkspaceID) {
		s.logger.WarnContext(ctx, "holding publish, subscription inactive",
			"schedule_id", sched.ID, "workspace_id", sched.WorkspaceID)
		holdUntil := time.Now().Add(publishHoldDelay)
		return s.stores.Social.RequeueSchedule(ctx, sched.ID, holdUntil, "subscription inactive")
	}

	post, err := s.stores.Social.GetPost(ctx, sched.PostID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.stores.Social.FailSchedule(ctx, sched.ID, "post no longer exists")
		}
		return fmt.Errorf("loading post: %w", err)
	}

	account, err := s.stores.Social.GetAccount(ctx, sched.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.stores.Social.FailSchedule(ctx, sched.ID, "account no longer exists")
		}
		return fmt.Errorf("loading account: %w", err)
	}

	cred, err := s.stores.Credentials.GetByID(ctx, account.CredentialID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.stores.Social.FailSchedule(ctx, sched.ID, "credential no longer exists")
		}
		return fmt.Errorf("loading credential: %w", err)
	}

	token, err := s.broker.AccessToken(cred)
	if err != nil {
		if errors.Is(err, provider.ErrCredentialRevoked) {
			return s.stores.Social.FailSchedule(ctx, sched.ID, "credential revoked")
		}
		return err
	}

	externalID, err := s.publisher.Publish(ctx, social.PublishRequest{
		Provider:    account.Provider,
		Handle:      account.Handle,
		AccessToken: token,
		Body:        post.Body,
		MediaURLs:   post.MediaURLs,
	})
	if err != nil {
		return s.handlePublishFailure(ctx, sched, err)
	}

	publishedAt := time.Now()
	if err := s.stores.Social.MarkSchedulePublished(ctx, sched.ID, externalID, publishedAt); err != nil {
		return fmt.Errorf("marking schedule published: %w", err)
	}

	if err := s.stores.Analytics.Insert(ctx, &model.AnalyticsEvent{
		ID:          id.New(),
		WorkspaceID: sched.WorkspaceID,
		EventType:   model.AnalyticsPostPublished,
		OccurredAt:  publishedAt,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to record analytics event", "error", err)
	}

	s.logger.InfoContext(ctx, "published social post",
		"schedule_id", sched.ID,
		"provider", account.Provider,
		"external_post_id", externalID)
	return nil
}

// FailSchedule is the worker's terminal-failure hook for a publish
// task the queue has given up on.
func (s *SocialService) FailSchedule(ctx context.Context, scheduleID int64, reason string) error {
	return s.stores.Social.FailSchedule(ctx, scheduleID, reason)
}

func (s *SocialService) publishAllowed(ctx context.Context, workspaceID int64) bool {
	sub, err := s.stores.Subscriptions.GetByWorkspace(ctx, workspaceID)
	if err != nil {
		// No subscription row is the free tier; it may publish.
		if errors.Is(err, store.ErrNotFound) {
			return true
		}
		s.logger.WarnContext(ctx, "failed to check subscription",
			"workspace_id", workspaceID, "error", err)
		return true
	}
	return sub.SendingAllowed()
}

func (s *SocialService) handlePublishFailure(ctx context.Context, sched *model.PostSchedule, pubErr error) error {
	// Non-API failures (network, timeouts) are retried; the provider's
	// own verdict wins when we have one.
	transient := true
	var apiErr *social.APIError
	if errors.As(pubErr, &apiErr) {
		transient = apiErr.Transient()
	}

	if !transient || sched.Attempts+1 >= maxPublishAttempts {
		s.logger.ErrorContext(ctx, "failing schedule",
			"schedule_id", sched.ID, "error", pubErr)
		return s.stores.Social.FailSchedule(ctx, sched.ID, pubErr.Error())
	}

	retryAt := time.Now().Add(time.Duration(sched.Attempts+1) * 5 * time.Minute)
	s.logger.WarnContext(ctx, "retrying publish",
		"schedule_id", sched.ID, "attempt", sched.Attempts+1, "error", pubErr)
	return s.stores.Social.RequeueSchedule(ctx, sched.ID, retryAt, pubErr.Error())
}
