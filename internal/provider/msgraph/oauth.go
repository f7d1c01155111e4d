package msgraph

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// MailboxScopes requested when a user connects an Outlook mailbox.
// offline_access is what yields a refresh token.
var MailboxScopes = []string{
	"offline_access",
	"https://graph.microsoft.com/Mail.ReadWrite",
	"https://graph.microsoft.com/Mail.Send",
	"https://graph.microsoft.com/User.Read",
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURL  string
}

func NewOAuth(cfg OAuthConfig) *oauth2.Config {
	tenant := cfg.TenantID
	if tenant == "" {
		// Multi-tenant app: any Microsoft account.
		tenant = "common"
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
		Scopes:       MailboxScopes,
	}
}
