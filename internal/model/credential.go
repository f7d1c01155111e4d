package model

import "time"

type CredentialKind string

const (
	CredentialKindMailbox CredentialKind = "mailbox"
	CredentialKindSocial  CredentialKind = "social"
)

type CredentialStatus string

const (
	CredentialStatusActive CredentialStatus = "active"
	// CredentialStatusRevoked is set when the provider rejects the refresh
	// token (invalid_grant); the user must reconnect.
	CredentialStatusRevoked CredentialStatus = "revoked"
)

// Credential stores provider OAuth tokens. AccessToken and RefreshToken
// hold vault ciphertext, never plaintext; plaintext only exists inside
// the token source that uses them.
type Credential struct {
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	TokenExpiresAt *time.Time       `json:"-"`
	RevokedAt      *time.Time       `json:"revoked_at,omitempty"`
	Kind           CredentialKind   `json:"kind"`
	Status         CredentialStatus `json:"status"`
	Provider       string           `json:"provider"`
	AccessToken    string           `json:"-"`
	RefreshToken   *string          `json:"-"`
	Scopes         []string         `json:"scopes,omitempty"`
	ID             int64            `json:"id,string"`
	WorkspaceID    int64            `json:"workspace_id,string"`
	UserID         int64            `json:"user_id,string"`
}

func (c *Credential) Revoked() bool {
	return c.Status == CredentialStatusRevoked
}
