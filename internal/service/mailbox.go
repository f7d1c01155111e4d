package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"leadmap.app/server/common/id"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider"
	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/provider/msgraph"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/store"
)

var (
	ErrMailboxAlreadyConnected = errors.New("mailbox already connected")
	ErrMailboxPaused           = errors.New("mailbox is paused")
	ErrOutlookNotConfigured    = errors.New("outlook integration is not configured")
)

// MailboxConfig carries the push-delivery endpoints mailbox
// connections register with their providers.
type MailboxConfig struct {
	// PubSubTopic is the fully-qualified topic Gmail watch publishes to,
	// e.g. projects/leadmap/topics/gmail-updates.
	PubSubTopic string
	// GraphWebhookURL receives Microsoft Graph change notifications.
	GraphWebhookURL  string
	GraphClientState string
}

// MailboxService owns the mailbox lifecycle: OAuth connection, push
// registration, renewal, and the send path campaigns and the inbox
// share.
type MailboxService struct {
	stores   *store.Stores
	txRunner TxRunner
	broker   *CredentialBroker
	producer queue.Producer

	googleOAuth *oauth2.Config
	graphOAuth  *oauth2.Config
	cfg         MailboxConfig
	logger      *slog.Logger
}

func NewMailboxService(stores *store.Stores, txRunner TxRunner, broker *CredentialBroker, producer queue.Producer, googleOAuth, graphOAuth *oauth2.Config, cfg MailboxConfig, logger *slog.Logger) *MailboxService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailboxService{
		stores:      stores,
		txRunner:    txRunner,
		broker:      broker,
		producer:    producer,
		googleOAuth: googleOAuth,
		graphOAuth:  graphOAuth,
		cfg:         cfg,
		logger:      logger,
	}
}

// GmailAuthURL starts the Gmail connection flow.
func (s *MailboxService) GmailAuthURL(state string) string {
	return google.AuthCodeURL(s.googleOAuth, state)
}

// OutlookAuthURL starts the Outlook connection flow.
func (s *MailboxService) OutlookAuthURL(state string) (string, error) {
	if s.graphOAuth == nil {
		return "", ErrOutlookNotConfigured
	}
	return s.graphOAuth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// ConnectGmail finishes the OAuth flow for a Gmail mailbox: exchanges
// the code, registers the Pub/Sub watch, and queues a backfill of
// recent mail.
func (s *MailboxService) ConnectGmail(ctx context.Context, workspaceID, userID int64, code string) (*model.Mailbox, error) {
	token, err := google.Exchange(ctx, s.googleOAuth, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	cred, err := s.createCredential(ctx, workspaceID, userID, string(model.ProviderGmail), google.MailboxScopes, token)
	if err != nil {
		return nil, err
	}

	mailbox, err := s.connectGmailMailbox(ctx, cred, workspaceID)
	if err != nil {
		// The mailbox never existed; don't keep tokens we'll never use.
		if delErr := s.stores.Credentials.Delete(ctx, cred.ID); delErr != nil {
			s.logger.WarnContext(ctx, "failed to clean up orphaned credential",
				"credential_id", cred.ID, "error", delErr)
		}
		return nil, err
	}
	return mailbox, nil
}

func (s *MailboxService) connectGmailMailbox(ctx context.Context, cred *model.Credential, workspaceID int64) (*model.Mailbox, error) {
	client, err := s.broker.GmailClient(ctx, cred)
	if err != nil {
		return nil, err
	}

	profile, err := client.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching gmail profile: %w", err)
	}

	if _, err := s.stores.Mailboxes.GetByProviderAddress(ctx, model.ProviderGmail, profile.Address); err == nil {
		return nil, ErrMailboxAlreadyConnected
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking existing mailbox: %w", err)
	}

	watch, err := client.Watch(ctx, s.cfg.PubSubTopic)
	if err != nil {
		return nil, fmt.Errorf("registering gmail watch: %w", err)
	}

	historyID := watch.HistoryID
	mailbox := &model.Mailbox{
		ID:             id.New(),
		WorkspaceID:    workspaceID,
		CredentialID:   cred.ID,
		Provider:       model.ProviderGmail,
		Address:        profile.Address,
		State:          model.MailboxStateActive,
		LastHistoryID:  &historyID,
		WatchExpiresAt: &watch.ExpiresAt,
	}
	if err := s.stores.Mailboxes.Create(ctx, mailbox); err != nil {
		return nil, fmt.Errorf("creating mailbox: %w", err)
	}

	s.enqueueBackfill(ctx, mailbox)

	s.logger.InfoContext(ctx, "connected gmail mailbox",
		"mailbox_id", mailbox.ID,
		"workspace_id", workspaceID)
	return mailbox, nil
}

// ConnectOutlook finishes the OAuth flow for an Outlook mailbox and
// registers a Graph change-notification subscription.
func (s *MailboxService) ConnectOutlook(ctx context.Context, workspaceID, userID int64, code string) (*model.Mailbox, error) {
	if s.graphOAuth == nil {
		return nil, ErrOutlookNotConfigured
	}

	token, err := s.graphOAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	cred, err := s.createCredential(ctx, workspaceID, userID, string(model.ProviderOutlook), msgraph.MailboxScopes, token)
	if err != nil {
		return nil, err
	}

	mailbox, err := s.connectOutlookMailbox(ctx, cred, workspaceID)
	if err != nil {
		if delErr := s.stores.Credentials.Delete(ctx, cred.ID); delErr != nil {
			s.logger.WarnContext(ctx, "failed to clean up orphaned credential",
				"credential_id", cred.ID, "error", delErr)
		}
		return nil, err
	}
	return mailbox, nil
}

func (s *MailboxService) connectOutlookMailbox(ctx context.Context, cred *model.Credential, workspaceID int64) (*model.Mailbox, error) {
	client, err := s.broker.GraphClient(ctx, cred)
	if err != nil {
		return nil, err
	}

	profile, err := client.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching outlook profile: %w", err)
	}

	if _, err := s.stores.Mailboxes.GetByProviderAddress(ctx, model.ProviderOutlook, profile.Address); err == nil {
		return nil, ErrMailboxAlreadyConnected
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking existing mailbox: %w", err)
	}

	sub, err := client.CreateSubscription(ctx, s.cfg.GraphWebhookURL, s.cfg.GraphClientState)
	if err != nil {
		return nil, fmt.Errorf("creating graph subscription: %w", err)
	}

	subscriptionID := sub.SubscriptionID
	mailbox := &model.Mailbox{
		ID:             id.New(),
		WorkspaceID:    workspaceID,
		CredentialID:   cred.ID,
		Provider:       model.ProviderOutlook,
		Address:        profile.Address,
		State:          model.MailboxStateActive,
		SubscriptionID: &subscriptionID,
		WatchExpiresAt: &sub.ExpiresAt,
	}
	if err := s.stores.Mailboxes.Create(ctx, mailbox); err != nil {
		return nil, fmt.Errorf("creating mailbox: %w", err)
	}

	s.enqueueBackfill(ctx, mailbox)

	s.logger.InfoContext(ctx, "connected outlook mailbox",
		"mailbox_id", mailbox.ID,
		"workspace_id", workspaceID)
	return mailbox, nil
}

func (s *MailboxService) createCredential(ctx context.Context, workspaceID, userID int64, providerName string, scopes []string, token *oauth2.Token) (*model.Credential, error) {
	access, refresh, expiry, err := s.broker.Seal(token)
	if err != nil {
		return nil, err
	}

	cred := &model.Credential{
		ID:             id.New(),
		WorkspaceID:    workspaceID,
		UserID:         userID,
		Kind:           model.CredentialKindMailbox,
		Status:         model.CredentialStatusActive,
		Provider:       providerName,
		AccessToken:    access,
		RefreshToken:   refresh,
		TokenExpiresAt: expiry,
		Scopes:         scopes,
	}
	if err := s.stores.Credentials.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("creating credential: %w", err)
	}
	return cred, nil
}

func (s *MailboxService) enqueueBackfill(ctx context.Context, mailbox *model.Mailbox) {
	if err := s.producer.Enqueue(ctx, queue.TaskMessage{
		TaskType:    queue.TaskTypeMailboxBackfill,
		MailboxID:   &mailbox.ID,
		WorkspaceID: &mailbox.WorkspaceID,
	}); err != nil {
		// Not fatal: push notifications will still sync new mail.
		s.logger.WarnContext(ctx, "failed to enqueue backfill",
			"mailbox_id", mailbox.ID, "error", err)
	}
}

func (s *MailboxService) Get(ctx context.Context, workspaceID, mailboxID int64) (*model.Mailbox, error) {
	mailbox, err := s.stores.Mailboxes.GetByID(ctx, mailboxID)
	if err != nil {
		return nil, err
	}
	if mailbox.WorkspaceID != workspaceID {
		return nil, store.ErrNotFound
	}
	return mailbox, nil
}

func (s *MailboxService) List(ctx context.Context, workspaceID int64) ([]model.Mailbox, error) {
	return s.stores.Mailboxes.ListByWorkspace(ctx, workspaceID)
}

// Disconnect tears down push registration and removes the mailbox and
// its credential. Synced threads and messages stay.
func (s *MailboxService) Disconnect(ctx context.Context, workspaceID, mailboxID int64) error {
	mailbox, err := s.Get(ctx, workspaceID, mailboxID)
	if err != nil {
		return err
	}

	cred, err := s.stores.Credentials.GetByID(ctx, mailbox.CredentialID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("loading credential: %w", err)
	}

	// Best effort: a revoked credential can't stop anything provider-side.
	if cred != nil && !cred.Revoked() {
		s.stopPush(ctx, mailbox, cred)
	}

	return s.txRunner.WithTx(ctx, func(stores *store.Stores) error {
		if err := stores.Mailboxes.Delete(ctx, mailbox.ID); err != nil {
			return fmt.Errorf("deleting mailbox: %w", err)
		}
		if err := stores.Credentials.Delete(ctx, mailbox.CredentialID); err != nil {
			return fmt.Errorf("deleting credential: %w", err)
		}
		return nil
	})
}

func (s *MailboxService) stopPush(ctx context.Context, mailbox *model.Mailbox, cred *model.Credential) {
	switch mailbox.Provider {
	case model.ProviderGmail:
		client, err := s.broker.GmailClient(ctx, cred)
		if err == nil {
			err = client.StopWatch(ctx)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "failed to stop gmail watch",
				"mailbox_id", mailbox.ID, "error", err)
		}
	case model.ProviderOutlook:
		if mailbox.SubscriptionID == nil {
			return
		}
		client, err := s.broker.GraphClient(ctx, cred)
		if err == nil {
			err = client.DeleteSubscription(ctx, *mailbox.SubscriptionID)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "failed to delete graph subscription",
				"mailbox_id", mailbox.ID, "error", err)
		}
	}
}

// RenewExpiringWatches re-registers Gmail watches and renews Graph
// subscriptions that expire within the lead window. Called on a cron.
func (s *MailboxService) RenewExpiringWatches(ctx context.Context, lead time.Duration, limit int32) error {
	mailboxes, err := s.stores.Mailboxes.ListWatchExpiringBefore(ctx, time.Now().Add(lead), limit)
	if err != nil {
		return fmt.Errorf("listing expiring watches: %w", err)
	}

	for i := range mailboxes {
		mailbox := &mailboxes[i]
		if err := s.renewWatch(ctx, mailbox); err != nil {
			if errors.Is(err, provider.ErrCredentialRevoked) {
				continue
			}
			s.logger.ErrorContext(ctx, "failed to renew watch",
				"mailbox_id", mailbox.ID, "error", err)
		}
	}
	return nil
}

func (s *MailboxService) renewWatch(ctx context.Context, mailbox *model.Mailbox) error {
	cred, err := s.stores.Credentials.GetByID(ctx, mailbox.CredentialID)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	switch mailbox.Provider {
	case model.ProviderGmail:
		client, err := s.broker.GmailClient(ctx, cred)
		if err != nil {
			return s.handleRenewError(ctx, mailbox, cred, err)
		}
		watch, err := client.Watch(ctx, s.cfg.PubSubTopic)
		if err != nil {
			return s.handleRenewError(ctx, mailbox, cred, err)
		}
		if err := s.stores.Mailboxes.SetWatch(ctx, mailbox.ID, watch.ExpiresAt, nil); err != nil {
			return fmt.Errorf("recording watch expiry: %w", err)
		}
		if err := s.stores.Mailboxes.AdvanceHistoryID(ctx, mailbox.ID, watch.HistoryID); err != nil {
			return fmt.Errorf("advancing history cursor: %w", err)
		}
	case model.ProviderOutlook:
		if mailbox.SubscriptionID == nil {
			return fmt.Errorf("mailbox %d has no graph subscription", mailbox.ID)
		}
		client, err := s.broker.GraphClient(ctx, cred)
		if err != nil {
			return s.handleRenewError(ctx, mailbox, cred, err)
		}
		expiresAt, err := client.RenewSubscription(ctx, *mailbox.SubscriptionID)
		if err != nil {
			return s.handleRenewError(ctx, mailbox, cred, err)
		}
		if err := s.stores.Mailboxes.SetWatch(ctx, mailbox.ID, expiresAt, mailbox.SubscriptionID); err != nil {
			return fmt.Errorf("recording subscription expiry: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "renewed mailbox watch", "mailbox_id", mailbox.ID)
	return nil
}

func (s *MailboxService) handleRenewError(ctx context.Context, mailbox *model.Mailbox, cred *model.Credential, err error) error {
	if errors.Is(err, provider.ErrCredentialRevoked) {
		return s.broker.MarkRevoked(ctx, cred, &mailbox.ID)
	}
	return err
}

// Send delivers an email through the mailbox's provider. It returns
// the provider message ID when the provider reports one (Gmail does,
// Graph doesn't).
func (s *MailboxService) Send(ctx context.Context, mailbox *model.Mailbox, fromName, to, subject, htmlBody string) (string, error) {
	if mailbox.State != model.MailboxStateActive {
		return "", ErrMailboxPaused
	}

	cred, err := s.stores.Credentials.GetByID(ctx, mailbox.CredentialID)
	if err != nil {
		return "", fmt.Errorf("loading credential: %w", err)
	}

	var providerMessageID string
	switch mailbox.Provider {
	case model.ProviderGmail:
		client, err := s.broker.GmailClient(ctx, cred)
		if err == nil {
			providerMessageID, err = client.Send(ctx, fromName, mailbox.Address, to, subject, htmlBody)
		}
		if err != nil {
			return "", s.handleSendError(ctx, mailbox, cred, err)
		}
	case model.ProviderOutlook:
		client, err := s.broker.GraphClient(ctx, cred)
		if err == nil {
			err = client.Send(ctx, to, subject, htmlBody)
		}
		if err != nil {
			return "", s.handleSendError(ctx, mailbox, cred, err)
		}
	default:
		return "", fmt.Errorf("unsupported provider %q", mailbox.Provider)
	}

	return providerMessageID, nil
}

func (s *MailboxService) handleSendError(ctx context.Context, mailbox *model.Mailbox, cred *model.Credential, err error) error {
	if errors.Is(err, provider.ErrCredentialRevoked) {
		return s.broker.MarkRevoked(ctx, cred, &mailbox.ID)
	}
	return fmt.Errorf("sending through %s: %w", mailbox.Provider, err)
}
