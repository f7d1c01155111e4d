package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type threadStore struct {
	q db.Querier
}

func newThreadStore(q db.Querier) ThreadStore {
	return &threadStore{q: q}
}

const threadColumns = `id, workspace_id, mailbox_id, lead_id, provider_thread_id,
	subject, snippet, message_count, is_unread, is_starred, last_message_at,
	created_at, updated_at`

func scanThread(row pgx.Row) (*model.EmailThread, error) {
	var t model.EmailThread
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.MailboxID, &t.LeadID, &t.ProviderThreadID,
		&t.Subject, &t.Snippet, &t.MessageCount, &t.IsUnread, &t.IsStarred,
		&t.LastMessageAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *threadStore) GetByID(ctx context.Context, id int64) (*model.EmailThread, error) {
	return scanThread(s.q.QueryRow(ctx,
		`SELECT `+threadColumns+` FROM email_threads WHERE id = $1`, id))
}

func (s *threadStore) GetByProviderThreadID(ctx context.Context, mailboxID int64, providerThreadID string) (*model.EmailThread, error) {
	return scanThread(s.q.QueryRow(ctx,
		`SELECT `+threadColumns+` FROM email_threads WHERE mailbox_id = $1 AND provider_thread_id = $2`,
		mailboxID, providerThreadID))
}

func (s *threadStore) Upsert(ctx context.Context, thread *model.EmailThread) error {
	// message_count only grows; a replayed delta never shrinks a thread.
	row, err := scanThread(s.q.QueryRow(ctx, `
		INSERT INTO email_threads (id, workspace_id, mailbox_id, lead_id, provider_thread_id,
			subject, snippet, message_count, is_unread, is_starred, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (mailbox_id, provider_thread_id) DO UPDATE SET
			subject = EXCLUDED.subject,
			snippet = EXCLUDED.snippet,
			message_count = GREATEST(email_threads.message_count, EXCLUDED.message_count),
			is_unread = EXCLUDED.is_unread,
			is_starred = EXCLUDED.is_starred,
			last_message_at = GREATEST(email_threads.last_message_at, EXCLUDED.last_message_at),
			updated_at = NOW()
		RETURNING `+threadColumns,
		thread.ID, thread.WorkspaceID, thread.MailboxID, thread.LeadID, thread.ProviderThreadID,
		thread.Subject, thread.Snippet, thread.MessageCount, thread.IsUnread, thread.IsStarred,
		thread.LastMessageAt))
	if err != nil {
		return err
	}
	*thread = *row
	return nil
}

func (s *threadStore) SetRead(ctx context.Context, id int64, unread bool) error {
	_, err := s.q.Exec(ctx,
		`UPDATE email_threads SET is_unread = $2, updated_at = NOW() WHERE id = $1`, id, unread)
	return err
}

func (s *threadStore) SetStarred(ctx context.Context, id int64, starred bool) error {
	_, err := s.q.Exec(ctx,
		`UPDATE email_threads SET is_starred = $2, updated_at = NOW() WHERE id = $1`, id, starred)
	return err
}

func (s *threadStore) LinkLead(ctx context.Context, id int64, leadID int64) error {
	_, err := s.q.Exec(ctx,
		`UPDATE email_threads SET lead_id = $2, updated_at = NOW() WHERE id = $1`, id, leadID)
	return err
}

func (s *threadStore) ListByMailbox(ctx context.Context, mailboxID int64, limit, offset int32) ([]model.EmailThread, error) {
	return s.list(ctx, `
		SELECT `+threadColumns+` FROM email_threads
		WHERE mailbox_id = $1
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $2 OFFSET $3`, mailboxID, limit, offset)
}

func (s *threadStore) ListByLead(ctx context.Context, leadID int64) ([]model.EmailThread, error) {
	return s.list(ctx, `
		SELECT `+threadColumns+` FROM email_threads
		WHERE lead_id = $1
		ORDER BY last_message_at DESC NULLS LAST`, leadID)
}

func (s *threadStore) list(ctx context.Context, sql string, args ...any) ([]model.EmailThread, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EmailThread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type messageStore struct {
	q db.Querier
}

func newMessageStore(q db.Querier) MessageStore {
	return &messageStore{q: q}
}

const messageColumns = `id, thread_id, mailbox_id, provider_message_id, from_address,
	from_name, to_addresses, subject, snippet, body_text, body_html, labels,
	is_unread, internal_date, created_at`

func scanMessage(row pgx.Row) (*model.EmailMessage, error) {
	var m model.EmailMessage
	err := row.Scan(&m.ID, &m.ThreadID, &m.MailboxID, &m.ProviderMessageID, &m.FromAddress,
		&m.FromName, &m.ToAddresses, &m.Subject, &m.Snippet, &m.BodyText, &m.BodyHTML,
		&m.Labels, &m.IsUnread, &m.InternalDate, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *messageStore) GetByID(ctx context.Context, id int64) (*model.EmailMessage, error) {
	return scanMessage(s.q.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM email_messages WHERE id = $1`, id))
}

func (s *messageStore) Insert(ctx context.Context, msg *model.EmailMessage) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO email_messages (id, thread_id, mailbox_id, provider_message_id, from_address,
			from_name, to_addresses, subject, snippet, body_text, body_html, labels,
			is_unread, internal_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (mailbox_id, provider_message_id) DO NOTHING`,
		msg.ID, msg.ThreadID, msg.MailboxID, msg.ProviderMessageID, msg.FromAddress,
		msg.FromName, msg.ToAddresses, msg.Subject, msg.Snippet, msg.BodyText, msg.BodyHTML,
		msg.Labels, msg.IsUnread, msg.InternalDate)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *messageStore) ListByThread(ctx context.Context, threadID int64) ([]model.EmailMessage, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+messageColumns+` FROM email_messages
		WHERE thread_id = $1
		ORDER BY internal_date`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EmailMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
