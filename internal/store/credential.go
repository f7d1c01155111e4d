package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type credentialStore struct {
	q db.Querier
}

func newCredentialStore(q db.Querier) CredentialStore {
	return &credentialStore{q: q}
}

const credentialColumns = `id, workspace_id, user_id, kind, provider, status,
	access_token, refresh_token, scopes, token_expires_at, revoked_at, created_at, updated_at`

func scanCredential(row pgx.Row) (*model.Credential, error) {
	var c model.Credential
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.UserID, &c.Kind, &c.Provider, &c.Status,
		&c.AccessToken, &c.RefreshToken, &c.Scopes, &c.TokenExpiresAt, &c.RevokedAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *credentialStore) GetByID(ctx context.Context, id int64) (*model.Credential, error) {
	return scanCredential(s.q.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, id))
}

func (s *credentialStore) Create(ctx context.Context, cred *model.Credential) error {
	row, err := scanCredential(s.q.QueryRow(ctx, `
		INSERT INTO credentials (id, workspace_id, user_id, kind, provider, status,
			access_token, refresh_token, scopes, token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+credentialColumns,
		cred.ID, cred.WorkspaceID, cred.UserID, cred.Kind, cred.Provider, cred.Status,
		cred.AccessToken, cred.RefreshToken, cred.Scopes, cred.TokenExpiresAt))
	if err != nil {
		return err
	}
	*cred = *row
	return nil
}

func (s *credentialStore) UpdateTokens(ctx context.Context, id int64, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE credentials
		SET access_token = $2,
		    refresh_token = COALESCE($3, refresh_token),
		    token_expires_at = $4,
		    updated_at = NOW()
		WHERE id = $1`, id, accessToken, refreshToken, expiresAt)
	return err
}

func (s *credentialStore) Revoke(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `
		UPDATE credentials
		SET status = 'revoked', revoked_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status <> 'revoked'`, id)
	return err
}

func (s *credentialStore) ListActiveExpiringBefore(ctx context.Context, before time.Time, limit int32) ([]model.Credential, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+credentialColumns+` FROM credentials
		WHERE status = 'active' AND token_expires_at IS NOT NULL AND token_expires_at < $1
		ORDER BY token_expires_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *credentialStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	return err
}
