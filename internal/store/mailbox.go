package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type mailboxStore struct {
	q db.Querier
}

func newMailboxStore(q db.Querier) MailboxStore {
	return &mailboxStore{q: q}
}

const mailboxColumns = `id, workspace_id, credential_id, provider, address, state,
	last_history_id, delta_link, subscription_id, watch_expires_at, last_synced_at,
	created_at, updated_at`

func scanMailbox(row pgx.Row) (*model.Mailbox, error) {
	var mb model.Mailbox
	var historyID *int64
	err := row.Scan(&mb.ID, &mb.WorkspaceID, &mb.CredentialID, &mb.Provider, &mb.Address,
		&mb.State, &historyID, &mb.DeltaLink, &mb.SubscriptionID, &mb.WatchExpiresAt,
		&mb.LastSyncedAt, &mb.CreatedAt, &mb.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if historyID != nil {
		h := uint64(*historyID)
		mb.LastHistoryID = &h
	}
	return &mb, nil
}

func (s *mailboxStore) GetByID(ctx context.Context, id int64) (*model.Mailbox, error) {
	return scanMailbox(s.q.QueryRow(ctx,
		`SELECT `+mailboxColumns+` FROM mailboxes WHERE id = $1`, id))
}

func (s *mailboxStore) GetByProviderAddress(ctx context.Context, provider model.Provider, address string) (*model.Mailbox, error) {
	return scanMailbox(s.q.QueryRow(ctx,
		`SELECT `+mailboxColumns+` FROM mailboxes WHERE provider = $1 AND address = $2`,
		provider, address))
}

func (s *mailboxStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Mailbox, error) {
	return scanMailbox(s.q.QueryRow(ctx,
		`SELECT `+mailboxColumns+` FROM mailboxes WHERE subscription_id = $1`, subscriptionID))
}

func (s *mailboxStore) Create(ctx context.Context, mb *model.Mailbox) error {
	var historyID *int64
	if mb.LastHistoryID != nil {
		h := int64(*mb.LastHistoryID)
		historyID = &h
	}
	row, err := scanMailbox(s.q.QueryRow(ctx, `
		INSERT INTO mailboxes (id, workspace_id, credential_id, provider, address, state, last_history_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+mailboxColumns,
		mb.ID, mb.WorkspaceID, mb.CredentialID, mb.Provider, mb.Address, mb.State, historyID))
	if err != nil {
		return err
	}
	*mb = *row
	return nil
}

func (s *mailboxStore) SetState(ctx context.Context, id int64, state model.MailboxState) error {
	_, err := s.q.Exec(ctx,
		`UPDATE mailboxes SET state = $2, updated_at = NOW() WHERE id = $1`, id, state)
	return err
}

func (s *mailboxStore) AdvanceHistoryID(ctx context.Context, id int64, historyID uint64) error {
	// GREATEST keeps the cursor monotonic under notification reordering.
	_, err := s.q.Exec(ctx, `
		UPDATE mailboxes
		SET last_history_id = GREATEST(COALESCE(last_history_id, 0), $2), updated_at = NOW()
		WHERE id = $1`, id, int64(historyID))
	return err
}

func (s *mailboxStore) SetDeltaLink(ctx context.Context, id int64, deltaLink string) error {
	_, err := s.q.Exec(ctx,
		`UPDATE mailboxes SET delta_link = $2, updated_at = NOW() WHERE id = $1`, id, deltaLink)
	return err
}

func (s *mailboxStore) SetWatch(ctx context.Context, id int64, expiresAt time.Time, subscriptionID *string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE mailboxes
		SET watch_expires_at = $2, subscription_id = COALESCE($3, subscription_id), updated_at = NOW()
		WHERE id = $1`, id, expiresAt, subscriptionID)
	return err
}

func (s *mailboxStore) SetLastSyncedAt(ctx context.Context, id int64, at time.Time) error {
	_, err := s.q.Exec(ctx,
		`UPDATE mailboxes SET last_synced_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	return err
}

func (s *mailboxStore) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Mailbox, error) {
	return s.list(ctx,
		`SELECT `+mailboxColumns+` FROM mailboxes WHERE workspace_id = $1 ORDER BY created_at`,
		workspaceID)
}

func (s *mailboxStore) ListByCredential(ctx context.Context, credentialID int64) ([]model.Mailbox, error) {
	return s.list(ctx,
		`SELECT `+mailboxColumns+` FROM mailboxes WHERE credential_id = $1`,
		credentialID)
}

func (s *mailboxStore) ListWatchExpiringBefore(ctx context.Context, before time.Time, limit int32) ([]model.Mailbox, error) {
	return s.list(ctx, `
		SELECT `+mailboxColumns+` FROM mailboxes
		WHERE state = 'active' AND (watch_expires_at IS NULL OR watch_expires_at < $1)
		ORDER BY watch_expires_at NULLS FIRST
		LIMIT $2`, before, limit)
}

func (s *mailboxStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM mailboxes WHERE id = $1`, id)
	return err
}

func (s *mailboxStore) list(ctx context.Context, sql string, args ...any) ([]model.Mailbox, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Mailbox
	for rows.Next() {
		mb, err := scanMailbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *mb)
	}
	return out, rows.Err()
}
