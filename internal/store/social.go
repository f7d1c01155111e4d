package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type socialStore struct {
	q db.Querier
}

func newSocialStore(q db.Querier) SocialStore {
	return &socialStore{q: q}
}

// --- Accounts ---------------------------------------------------------------

const socialAccountColumns = `id, workspace_id, credential_id, provider, handle, created_at, updated_at`

func scanSocialAccount(row pgx.Row) (*model.SocialAccount, error) {
	var a model.SocialAccount
	err := row.Scan(&a.ID, &a.WorkspaceID, &a.CredentialID, &a.Provider, &a.Handle,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *socialStore) GetAccount(ctx context.Context, id int64) (*model.SocialAccount, error) {
	return scanSocialAccount(s.q.QueryRow(ctx,
		`SELECT `+socialAccountColumns+` FROM social_accounts WHERE id = $1`, id))
}

func (s *socialStore) CreateAccount(ctx context.Context, acc *model.SocialAccount) error {
	row, err := scanSocialAccount(s.q.QueryRow(ctx, `
		INSERT INTO social_accounts (id, workspace_id, credential_id, provider, handle)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+socialAccountColumns,
		acc.ID, acc.WorkspaceID, acc.CredentialID, acc.Provider, acc.Handle))
	if err != nil {
		return err
	}
	*acc = *row
	return nil
}

func (s *socialStore) ListAccountsByWorkspace(ctx context.Context, workspaceID int64) ([]model.SocialAccount, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+socialAccountColumns+` FROM social_accounts WHERE workspace_id = $1 ORDER BY created_at`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SocialAccount
	for rows.Next() {
		a, err := scanSocialAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *socialStore) DeleteAccount(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM social_accounts WHERE id = $1`, id)
	return err
}

// --- Posts ------------------------------------------------------------------

const socialPostColumns = `id, workspace_id, body, media_urls, created_at, updated_at`

func scanSocialPost(row pgx.Row) (*model.SocialPost, error) {
	var p model.SocialPost
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Body, &p.MediaURLs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *socialStore) GetPost(ctx context.Context, id int64) (*model.SocialPost, error) {
	return scanSocialPost(s.q.QueryRow(ctx,
		`SELECT `+socialPostColumns+` FROM social_posts WHERE id = $1`, id))
}

func (s *socialStore) CreatePost(ctx context.Context, post *model.SocialPost) error {
	row, err := scanSocialPost(s.q.QueryRow(ctx, `
		INSERT INTO social_posts (id, workspace_id, body, media_urls)
		VALUES ($1, $2, $3, $4)
		RETURNING `+socialPostColumns,
		post.ID, post.WorkspaceID, post.Body, post.MediaURLs))
	if err != nil {
		return err
	}
	*post = *row
	return nil
}

func (s *socialStore) UpdatePost(ctx context.Context, post *model.SocialPost) error {
	row, err := scanSocialPost(s.q.QueryRow(ctx, `
		UPDATE social_posts SET body = $2, media_urls = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+socialPostColumns,
		post.ID, post.Body, post.MediaURLs))
	if err != nil {
		return err
	}
	*post = *row
	return nil
}

func (s *socialStore) DeletePost(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM social_posts WHERE id = $1`, id)
	return err
}

// --- Schedules --------------------------------------------------------------

const scheduleColumns = `id, workspace_id, post_id, account_id, status, scheduled_at,
	published_at, external_post_id, attempts, last_error, created_at, updated_at`

func scanSchedule(row pgx.Row) (*model.PostSchedule, error) {
	var sc model.PostSchedule
	err := row.Scan(&sc.ID, &sc.WorkspaceID, &sc.PostID, &sc.AccountID, &sc.Status,
		&sc.ScheduledAt, &sc.PublishedAt, &sc.ExternalPostID, &sc.Attempts,
		&sc.LastError, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sc, nil
}

func (s *socialStore) GetSchedule(ctx context.Context, id int64) (*model.PostSchedule, error) {
	return scanSchedule(s.q.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM post_schedules WHERE id = $1`, id))
}

func (s *socialStore) CreateSchedule(ctx context.Context, sched *model.PostSchedule) error {
	row, err := scanSchedule(s.q.QueryRow(ctx, `
		INSERT INTO post_schedules (id, workspace_id, post_id, account_id, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+scheduleColumns,
		sched.ID, sched.WorkspaceID, sched.PostID, sched.AccountID, sched.Status, sched.ScheduledAt))
	if err != nil {
		return err
	}
	*sched = *row
	return nil
}

func (s *socialStore) ClaimDueSchedules(ctx context.Context, now time.Time, limit int32) ([]model.PostSchedule, error) {
	rows, err := s.q.Query(ctx, `
		UPDATE post_schedules SET status = 'publishing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM post_schedules
			WHERE status = 'queued' AND scheduled_at <= $1
			ORDER BY scheduled_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+scheduleColumns, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PostSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func (s *socialStore) MarkSchedulePublished(ctx context.Context, id int64, externalPostID string, publishedAt time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE post_schedules
		SET status = 'published', external_post_id = $2, published_at = $3,
		    last_error = NULL, updated_at = NOW()
		WHERE id = $1`, id, externalPostID, publishedAt)
	return err
}

func (s *socialStore) RequeueSchedule(ctx context.Context, id int64, at time.Time, errMsg string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE post_schedules
		SET status = 'queued', scheduled_at = $2, attempts = attempts + 1,
		    last_error = $3, updated_at = NOW()
		WHERE id = $1`, id, at, errMsg)
	return err
}

func (s *socialStore) FailSchedule(ctx context.Context, id int64, errMsg string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE post_schedules
		SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1`, id, errMsg)
	return err
}

func (s *socialStore) ListSchedulesByWorkspace(ctx context.Context, workspaceID int64, limit, offset int32) ([]model.PostSchedule, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+scheduleColumns+` FROM post_schedules
		WHERE workspace_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2 OFFSET $3`, workspaceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PostSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

func (s *socialStore) DeleteSchedule(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM post_schedules WHERE id = $1`, id)
	return err
}
