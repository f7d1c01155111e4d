package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type campaignStore struct {
	q db.Querier
}

func newCampaignStore(q db.Querier) CampaignStore {
	return &campaignStore{q: q}
}

const campaignColumns = `id, workspace_id, mailbox_id, name, status, created_at, updated_at`

func scanCampaign(row pgx.Row) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(&c.ID, &c.WorkspaceID, &c.MailboxID, &c.Name, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *campaignStore) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	return scanCampaign(s.q.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
}

func (s *campaignStore) Create(ctx context.Context, c *model.Campaign) error {
	row, err := scanCampaign(s.q.QueryRow(ctx, `
		INSERT INTO campaigns (id, workspace_id, mailbox_id, name, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+campaignColumns,
		c.ID, c.WorkspaceID, c.MailboxID, c.Name, c.Status))
	if err != nil {
		return err
	}
	*c = *row
	return nil
}

func (s *campaignStore) Update(ctx context.Context, c *model.Campaign) error {
	row, err := scanCampaign(s.q.QueryRow(ctx, `
		UPDATE campaigns SET name = $2, mailbox_id = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+campaignColumns,
		c.ID, c.Name, c.MailboxID))
	if err != nil {
		return err
	}
	*c = *row
	return nil
}

func (s *campaignStore) SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	_, err := s.q.Exec(ctx,
		`UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (s *campaignStore) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.Campaign, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE workspace_id = $1 ORDER BY created_at DESC`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *campaignStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	return err
}

// --- Steps ------------------------------------------------------------------

const stepColumns = `id, campaign_id, position, delay_hours, subject, body_template, created_at`

func scanStep(row pgx.Row) (*model.CampaignStep, error) {
	var st model.CampaignStep
	err := row.Scan(&st.ID, &st.CampaignID, &st.Position, &st.DelayHours, &st.Subject,
		&st.BodyTemplate, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (s *campaignStore) CreateStep(ctx context.Context, step *model.CampaignStep) error {
	row, err := scanStep(s.q.QueryRow(ctx, `
		INSERT INTO campaign_steps (id, campaign_id, position, delay_hours, subject, body_template)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+stepColumns,
		step.ID, step.CampaignID, step.Position, step.DelayHours, step.Subject, step.BodyTemplate))
	if err != nil {
		return err
	}
	*step = *row
	return nil
}

func (s *campaignStore) GetStep(ctx context.Context, campaignID int64, position int32) (*model.CampaignStep, error) {
	return scanStep(s.q.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM campaign_steps WHERE campaign_id = $1 AND position = $2`,
		campaignID, position))
}

func (s *campaignStore) ListSteps(ctx context.Context, campaignID int64) ([]model.CampaignStep, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+stepColumns+` FROM campaign_steps WHERE campaign_id = $1 ORDER BY position`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CampaignStep
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *campaignStore) DeleteStep(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM campaign_steps WHERE id = $1`, id)
	return err
}

// --- Enrollments ------------------------------------------------------------

const enrollmentColumns = `id, campaign_id, lead_id, status, next_position, next_step_at,
	attempts, last_error, created_at, updated_at`

func scanEnrollment(row pgx.Row) (*model.CampaignEnrollment, error) {
	var e model.CampaignEnrollment
	err := row.Scan(&e.ID, &e.CampaignID, &e.LeadID, &e.Status, &e.NextPosition,
		&e.NextStepAt, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *campaignStore) CreateEnrollment(ctx context.Context, e *model.CampaignEnrollment) error {
	row, err := scanEnrollment(s.q.QueryRow(ctx, `
		INSERT INTO campaign_enrollments (id, campaign_id, lead_id, status, next_position, next_step_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (campaign_id, lead_id) DO UPDATE SET updated_at = NOW()
		RETURNING `+enrollmentColumns,
		e.ID, e.CampaignID, e.LeadID, e.Status, e.NextPosition, e.NextStepAt))
	if err != nil {
		return err
	}
	*e = *row
	return nil
}

func (s *campaignStore) GetEnrollment(ctx context.Context, id int64) (*model.CampaignEnrollment, error) {
	return scanEnrollment(s.q.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM campaign_enrollments WHERE id = $1`, id))
}

func (s *campaignStore) ClaimDueEnrollments(ctx context.Context, now time.Time, limit int32) ([]model.CampaignEnrollment, error) {
	// SKIP LOCKED lets concurrent pollers claim disjoint sets.
	rows, err := s.q.Query(ctx, `
		UPDATE campaign_enrollments SET status = 'claimed', updated_at = NOW()
		WHERE id IN (
			SELECT e.id FROM campaign_enrollments e
			JOIN campaigns c ON c.id = e.campaign_id
			WHERE e.status = 'active' AND e.next_step_at <= $1 AND c.status = 'active'
			ORDER BY e.next_step_at
			LIMIT $2
			FOR UPDATE OF e SKIP LOCKED
		)
		RETURNING `+enrollmentColumns, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CampaignEnrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *campaignStore) AdvanceEnrollment(ctx context.Context, id int64, nextPosition int32, nextStepAt *time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE campaign_enrollments
		SET status = 'active', next_position = $2, next_step_at = $3,
		    attempts = 0, last_error = NULL, updated_at = NOW()
		WHERE id = $1`, id, nextPosition, nextStepAt)
	return err
}

func (s *campaignStore) CompleteEnrollment(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `
		UPDATE campaign_enrollments
		SET status = 'completed', next_step_at = NULL, updated_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (s *campaignStore) FailEnrollment(ctx context.Context, id int64, errMsg string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE campaign_enrollments
		SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1`, id, errMsg)
	return err
}

func (s *campaignStore) RetryEnrollment(ctx context.Context, id int64, nextStepAt time.Time, errMsg string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE campaign_enrollments
		SET status = 'active', next_step_at = $2, attempts = attempts + 1,
		    last_error = $3, updated_at = NOW()
		WHERE id = $1`, id, nextStepAt, errMsg)
	return err
}

func (s *campaignStore) StopEnrollmentsByLead(ctx context.Context, leadID int64) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE campaign_enrollments
		SET status = 'stopped', next_step_at = NULL, updated_at = NOW()
		WHERE lead_id = $1 AND status IN ('active', 'claimed')`, leadID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
