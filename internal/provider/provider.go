// Package provider holds the types shared by the mailbox provider
// clients (Gmail, Microsoft Graph) and the services that drive them.
package provider

import (
	"errors"
	"time"
)

// ErrCredentialRevoked means the provider rejected the refresh token
// (invalid_grant or equivalent). Retrying cannot fix it; the mailbox
// must be paused until the user reconnects.
var ErrCredentialRevoked = errors.New("credential revoked by provider")

// TokenUpdate carries rotated tokens out of a token source so the
// caller can persist them. RefreshToken is nil when the provider did
// not rotate it.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken *string
	Expiry       *time.Time
}

// TokenUpdateFunc is invoked whenever a client silently refreshes its
// access token mid-request.
type TokenUpdateFunc func(update TokenUpdate) error

// EmailMessage is a provider-neutral view of one fetched message.
type EmailMessage struct {
	ProviderMessageID string
	ProviderThreadID  string
	From              string
	FromName          string
	To                []string
	Subject           string
	Snippet           string
	BodyText          string
	BodyHTML          string
	Labels            []string
	Unread            bool
	Starred           bool
	InternalDate      time.Time
}

// WatchResult reports the state of a freshly registered notification
// channel.
type WatchResult struct {
	// HistoryID is the Gmail cursor at watch time; zero for Graph.
	HistoryID uint64
	// SubscriptionID is the Graph subscription id; empty for Gmail.
	SubscriptionID string
	ExpiresAt      time.Time
}
