package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"leadmap.app/server/common/secret"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/provider"
	"leadmap.app/server/internal/provider/google"
	"leadmap.app/server/internal/provider/msgraph"
	"leadmap.app/server/internal/store"
)

// refreshAttempts bounds the forced-refresh retry loop in the cron
// sweep. Live requests rely on the token source's single attempt.
const refreshAttempts = 3

// CredentialBroker is the only component that sees plaintext tokens.
// It opens vault ciphertext into provider clients and persists
// rotations back as ciphertext.
type CredentialBroker struct {
	credentials store.CredentialStore
	mailboxes   store.MailboxStore
	vault       *secret.Vault
	googleOAuth *oauth2.Config
	graphOAuth  *oauth2.Config
	logger      *slog.Logger
}

func NewCredentialBroker(credentials store.CredentialStore, mailboxes store.MailboxStore, vault *secret.Vault, googleOAuth, graphOAuth *oauth2.Config, logger *slog.Logger) *CredentialBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialBroker{
		credentials: credentials,
		mailboxes:   mailboxes,
		vault:       vault,
		googleOAuth: googleOAuth,
		graphOAuth:  graphOAuth,
		logger:      logger,
	}
}

// Seal encrypts a fresh token for storage on a credential row.
func (b *CredentialBroker) Seal(token *oauth2.Token) (access string, refresh *string, expiry *time.Time, err error) {
	access, err = b.vault.Seal(token.AccessToken)
	if err != nil {
		return "", nil, nil, fmt.Errorf("sealing access token: %w", err)
	}
	if token.RefreshToken != "" {
		sealed, sealErr := b.vault.Seal(token.RefreshToken)
		if sealErr != nil {
			return "", nil, nil, fmt.Errorf("sealing refresh token: %w", sealErr)
		}
		refresh = &sealed
	}
	if !token.Expiry.IsZero() {
		exp := token.Expiry
		expiry = &exp
	}
	return access, refresh, expiry, nil
}

func (b *CredentialBroker) open(cred *model.Credential) (access, refresh string, err error) {
	access, err = b.vault.Open(cred.AccessToken)
	if err != nil {
		return "", "", fmt.Errorf("opening access token: %w", err)
	}
	if cred.RefreshToken != nil {
		refresh, err = b.vault.Open(*cred.RefreshToken)
		if err != nil {
			return "", "", fmt.Errorf("opening refresh token: %w", err)
		}
	}
	return access, refresh, nil
}

// persistFunc seals rotated tokens back onto the credential row. It is
// invoked from inside provider clients mid-request.
func (b *CredentialBroker) persistFunc(credentialID int64) provider.TokenUpdateFunc {
	return func(update provider.TokenUpdate) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		access, err := b.vault.Seal(update.AccessToken)
		if err != nil {
			return fmt.Errorf("sealing rotated access token: %w", err)
		}
		var refresh *string
		if update.RefreshToken != nil {
			sealed, err := b.vault.Seal(*update.RefreshToken)
			if err != nil {
				return fmt.Errorf("sealing rotated refresh token: %w", err)
			}
			refresh = &sealed
		}

		if err := b.credentials.UpdateTokens(ctx, credentialID, access, refresh, update.Expiry); err != nil {
			return fmt.Errorf("persisting rotated tokens: %w", err)
		}

		b.logger.InfoContext(ctx, "persisted rotated tokens", "credential_id", credentialID)
		return nil
	}
}

// GmailClient opens a credential into a live Gmail client.
func (b *CredentialBroker) GmailClient(ctx context.Context, cred *model.Credential) (*google.Client, error) {
	if cred.Revoked() {
		return nil, provider.ErrCredentialRevoked
	}
	access, refresh, err := b.open(cred)
	if err != nil {
		return nil, err
	}
	return google.NewClient(ctx, b.googleOAuth, access, refresh, cred.TokenExpiresAt, b.persistFunc(cred.ID))
}

// GraphClient opens a credential into a live Microsoft Graph client.
func (b *CredentialBroker) GraphClient(ctx context.Context, cred *model.Credential) (*msgraph.Client, error) {
	if cred.Revoked() {
		return nil, provider.ErrCredentialRevoked
	}
	access, refresh, err := b.open(cred)
	if err != nil {
		return nil, err
	}
	return msgraph.NewClient(ctx, b.graphOAuth, access, refresh, cred.TokenExpiresAt, b.persistFunc(cred.ID)), nil
}

// AccessToken returns the plaintext access token for providers that
// take a bearer token directly (social publishers).
func (b *CredentialBroker) AccessToken(cred *model.Credential) (string, error) {
	if cred.Revoked() {
		return "", provider.ErrCredentialRevoked
	}
	access, _, err := b.open(cred)
	if err != nil {
		return "", err
	}
	return access, nil
}

// Refresh force-refreshes a credential's access token, retrying
// transient failures with backoff. Used by the expiry sweep so live
// requests rarely pay the refresh cost.
func (b *CredentialBroker) Refresh(ctx context.Context, cred *model.Credential) error {
	if cred.Revoked() {
		return provider.ErrCredentialRevoked
	}

	_, refresh, err := b.open(cred)
	if err != nil {
		return err
	}
	if refresh == "" {
		return fmt.Errorf("credential %d has no refresh token", cred.ID)
	}

	cfg := b.googleOAuth
	if cred.Provider == string(model.ProviderOutlook) {
		cfg = b.graphOAuth
	}

	// Expired token plus refresh token forces TokenSource to hit the
	// token endpoint.
	stale := &oauth2.Token{RefreshToken: refresh, Expiry: time.Now().Add(-time.Minute)}

	var lastErr error
	for attempt := 1; attempt <= refreshAttempts; attempt++ {
		token, err := cfg.TokenSource(ctx, stale).Token()
		if err == nil {
			access, refreshSealed, expiry, sealErr := b.Seal(token)
			if sealErr != nil {
				return sealErr
			}
			if err := b.credentials.UpdateTokens(ctx, cred.ID, access, refreshSealed, expiry); err != nil {
				return fmt.Errorf("persisting refreshed tokens: %w", err)
			}
			return nil
		}

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return b.MarkRevoked(ctx, cred, nil)
		}

		lastErr = err
		if attempt < refreshAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return fmt.Errorf("refreshing credential %d: %w", cred.ID, lastErr)
}

// RefreshExpiring force-refreshes credentials whose access token
// expires within the lead window. Called on a cron so live requests
// rarely hit the token endpoint themselves.
func (b *CredentialBroker) RefreshExpiring(ctx context.Context, lead time.Duration, limit int32) error {
	creds, err := b.credentials.ListActiveExpiringBefore(ctx, time.Now().Add(lead), limit)
	if err != nil {
		return fmt.Errorf("listing expiring credentials: %w", err)
	}

	for i := range creds {
		cred := &creds[i]
		if err := b.Refresh(ctx, cred); err != nil {
			if errors.Is(err, provider.ErrCredentialRevoked) {
				continue
			}
			b.logger.WarnContext(ctx, "failed to refresh credential",
				"credential_id", cred.ID, "error", err)
		}
	}
	return nil
}

// MarkRevoked records a provider-side revocation and pauses the
// mailbox behind the credential so sync and send stop immediately.
// Callers without a mailbox at hand (the refresh sweep) pass nil and
// the mailboxes are resolved from the credential.
func (b *CredentialBroker) MarkRevoked(ctx context.Context, cred *model.Credential, mailboxID *int64) error {
	if err := b.credentials.Revoke(ctx, cred.ID); err != nil {
		return fmt.Errorf("revoking credential: %w", err)
	}
	if mailboxID != nil {
		if err := b.mailboxes.SetState(ctx, *mailboxID, model.MailboxStatePaused); err != nil {
			return fmt.Errorf("pausing mailbox: %w", err)
		}
	} else {
		boxes, err := b.mailboxes.ListByCredential(ctx, cred.ID)
		if err != nil {
			return fmt.Errorf("resolving mailboxes for credential: %w", err)
		}
		for i := range boxes {
			if err := b.mailboxes.SetState(ctx, boxes[i].ID, model.MailboxStatePaused); err != nil {
				return fmt.Errorf("pausing mailbox: %w", err)
			}
		}
	}
	b.logger.WarnContext(ctx, "credential revoked by provider",
		"credential_id", cred.ID,
		"provider", cred.Provider)
	return provider.ErrCredentialRevoked
}
