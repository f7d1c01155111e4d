package service

import (
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"leadmap.app/server/common/secret"
	"leadmap.app/server/core/config"
	"leadmap.app/server/internal/provider/enrich"
	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/provider/msgraph"
	"leadmap.app/server/internal/provider/social"
	"leadmap.app/server/internal/queue"
	"leadmap.app/server/internal/search"
	"leadmap.app/server/internal/store"
	"leadmap.app/server/internal/summary"
)

// Services wires the service layer once at boot. Optional integrations
// (Outlook, Typesense, OpenAI, Stripe, skip-trace) are nil or disabled
// when unconfigured; the services behind them degrade gracefully.
type Services struct {
	auth       *AuthService
	workspaces *WorkspaceService
	mailboxes  *MailboxService
	ingest     *IngestService
	sync       *SyncService
	inbox      *InboxService
	leads      *LeadService
	campaigns  *CampaignService
	social     *SocialService
	search     *SearchService
	billing    *BillingService
	analytics  *AnalyticsService
	broker     *CredentialBroker
}

func NewServices(cfg config.Config, stores *store.Stores, txRunner TxRunner, producer queue.Producer, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vault, err := secret.NewVault(cfg.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("initializing credential vault: %w", err)
	}

	signInOAuth := google.NewOAuth(google.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
	}, google.SignInScopes)

	gmailOAuth := google.NewOAuth(google.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
	}, google.MailboxScopes)

	var graphOAuth *oauth2.Config
	if cfg.Microsoft.Enabled() {
		graphOAuth = msgraph.NewOAuth(msgraph.OAuthConfig{
			ClientID:     cfg.Microsoft.ClientID,
			ClientSecret: cfg.Microsoft.ClientSecret,
			TenantID:     cfg.Microsoft.Tenant,
			RedirectURL:  cfg.Microsoft.RedirectURI,
		})
	}

	broker := NewCredentialBroker(stores.Credentials, stores.Mailboxes, vault, gmailOAuth, graphOAuth, logger)

	var searchClient *search.Client
	if cfg.Typesense.Enabled() {
		searchClient = search.NewClient(search.Config{
			URL:    cfg.Typesense.URL,
			APIKey: cfg.Typesense.APIKey,
		})
	}

	var summarizer summary.Summarizer
	if cfg.OpenAI.Enabled() {
		summarizer, err = summary.New(summary.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing summarizer: %w", err)
		}
	}

	var enricher *enrich.Client
	if cfg.Enrich.Enabled() {
		enricher = enrich.NewClient(enrich.Config{
			BaseURL: cfg.Enrich.BaseURL,
			APIKey:  cfg.Enrich.APIKey,
			Timeout: cfg.Enrich.Timeout,
		})
	}

	mailboxCfg := MailboxConfig{
		PubSubTopic:      fmt.Sprintf("projects/%s/topics/%s", cfg.PubSub.ProjectID, cfg.PubSub.Topic),
		GraphWebhookURL:  cfg.Microsoft.WebhookURL,
		GraphClientState: cfg.Microsoft.WebhookClientState,
	}

	mailboxes := NewMailboxService(stores, txRunner, broker, producer, gmailOAuth, graphOAuth, mailboxCfg, logger)

	return &Services{
		auth:       NewAuthService(stores, signInOAuth, cfg.Session.JWTSecret, cfg.Session.AccessTTL, cfg.Session.SessionTTL, logger),
		workspaces: NewWorkspaceService(stores, txRunner, logger),
		mailboxes:  mailboxes,
		ingest:     NewIngestService(stores.Mailboxes, txRunner, producer, logger),
		sync:       NewSyncService(stores, txRunner, broker, producer, logger),
		inbox:      NewInboxService(stores, summarizer, logger),
		leads:      NewLeadService(stores, txRunner, enricher, producer, logger),
		campaigns:  NewCampaignService(stores, txRunner, mailboxes, producer, logger),
		social:     NewSocialService(stores, broker, social.NewHTTPPublisher(), producer, logger),
		search:     NewSearchService(stores, searchClient, logger),
		billing:    NewBillingService(stores, cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, logger),
		analytics:  NewAnalyticsService(stores, logger),
		broker:     broker,
	}, nil
}

func (s *Services) Auth() *AuthService            { return s.auth }
func (s *Services) Workspaces() *WorkspaceService { return s.workspaces }
func (s *Services) Mailboxes() *MailboxService    { return s.mailboxes }
func (s *Services) Ingest() *IngestService        { return s.ingest }
func (s *Services) Sync() *SyncService            { return s.sync }
func (s *Services) Inbox() *InboxService          { return s.inbox }
func (s *Services) Leads() *LeadService           { return s.leads }
func (s *Services) Campaigns() *CampaignService   { return s.campaigns }
func (s *Services) Social() *SocialService        { return s.social }
func (s *Services) Search() *SearchService        { return s.search }
func (s *Services) Billing() *BillingService      { return s.billing }
func (s *Services) Analytics() *AnalyticsService  { return s.analytics }
func (s *Services) Broker() *CredentialBroker     { return s.broker }
