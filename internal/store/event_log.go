package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type eventLogStore struct {
	q db.Querier
}

func newEventLogStore(q db.Querier) EventLogStore {
	return &eventLogStore{q: q}
}

const eventLogColumns = `id, workspace_id, mailbox_id, source, event_type, dedupe_key,
	payload, processed_at, processing_error, created_at`

func scanEventLog(row pgx.Row) (*model.SyncEventLog, error) {
	var ev model.SyncEventLog
	err := row.Scan(&ev.ID, &ev.WorkspaceID, &ev.MailboxID, &ev.Source, &ev.EventType,
		&ev.DedupeKey, &ev.Payload, &ev.ProcessedAt, &ev.ProcessingError, &ev.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

func (s *eventLogStore) GetByID(ctx context.Context, id int64) (*model.SyncEventLog, error) {
	return scanEventLog(s.q.QueryRow(ctx,
		`SELECT `+eventLogColumns+` FROM sync_event_logs WHERE id = $1`, id))
}

func (s *eventLogStore) Insert(ctx context.Context, ev *model.SyncEventLog) (bool, error) {
	row, err := scanEventLog(s.q.QueryRow(ctx, `
		INSERT INTO sync_event_logs (id, workspace_id, mailbox_id, source, event_type, dedupe_key, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING `+eventLogColumns,
		ev.ID, ev.WorkspaceID, ev.MailboxID, ev.Source, ev.EventType, ev.DedupeKey, ev.Payload))
	if err != nil {
		// DO NOTHING skips RETURNING, which surfaces as no rows.
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	*ev = *row
	return true, nil
}

func (s *eventLogStore) MarkProcessed(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `
		UPDATE sync_event_logs
		SET processed_at = NOW(), processing_error = NULL
		WHERE id = $1`, id)
	return err
}

func (s *eventLogStore) MarkFailed(ctx context.Context, id int64, errMsg *string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE sync_event_logs
		SET processed_at = NOW(), processing_error = $2
		WHERE id = $1`, id, errMsg)
	return err
}
