package store

import (
	"leadmap.app/server/core/db"
)

// Stores bundles every store over a single querier. Binding them to a
// transaction is just store.New(tx).
type Stores struct {
	Users         UserStore
	Sessions      SessionStore
	Workspaces    WorkspaceStore
	Mailboxes     MailboxStore
	Credentials   CredentialStore
	Threads       ThreadStore
	Messages      MessageStore
	Leads         LeadStore
	Campaigns     CampaignStore
	Social        SocialStore
	EventLogs     EventLogStore
	Subscriptions SubscriptionStore
	Analytics     AnalyticsStore
}

func New(q db.Querier) *Stores {
	return &Stores{
		Users:         newUserStore(q),
		Sessions:      newSessionStore(q),
		Workspaces:    newWorkspaceStore(q),
		Mailboxes:     newMailboxStore(q),
		Credentials:   newCredentialStore(q),
		Threads:       newThreadStore(q),
		Messages:      newMessageStore(q),
		Leads:         newLeadStore(q),
		Campaigns:     newCampaignStore(q),
		Social:        newSocialStore(q),
		EventLogs:     newEventLogStore(q),
		Subscriptions: newSubscriptionStore(q),
		Analytics:     newAnalyticsStore(q),
	}
}
