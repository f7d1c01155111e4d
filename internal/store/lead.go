package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type leadStore struct {
	q db.Querier
}

func newLeadStore(q db.Querier) LeadStore {
	return &leadStore{q: q}
}

const leadColumns = `id, workspace_id, source, stage, street, city, state, zip, price,
	property_url, owner_name, owner_phone, owner_email, extra, enriched_at,
	created_at, updated_at`

func scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(&l.ID, &l.WorkspaceID, &l.Source, &l.Stage, &l.Street, &l.City,
		&l.State, &l.Zip, &l.Price, &l.PropertyURL, &l.OwnerName, &l.OwnerPhone,
		&l.OwnerEmail, &l.Extra, &l.EnrichedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (s *leadStore) GetByID(ctx context.Context, id int64) (*model.Lead, error) {
	return scanLead(s.q.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
}

func (s *leadStore) GetByEmail(ctx context.Context, workspaceID int64, email string) (*model.Lead, error) {
	return scanLead(s.q.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE workspace_id = $1 AND lower(owner_email) = lower($2)
		ORDER BY created_at
		LIMIT 1`, workspaceID, email))
}

func (s *leadStore) Create(ctx context.Context, lead *model.Lead) error {
	row, err := scanLead(s.q.QueryRow(ctx, `
		INSERT INTO leads (id, workspace_id, source, stage, street, city, state, zip, price,
			property_url, owner_name, owner_phone, owner_email, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+leadColumns,
		lead.ID, lead.WorkspaceID, lead.Source, lead.Stage, lead.Street, lead.City,
		lead.State, lead.Zip, lead.Price, lead.PropertyURL, lead.OwnerName,
		lead.OwnerPhone, lead.OwnerEmail, lead.Extra))
	if err != nil {
		return err
	}
	*lead = *row
	return nil
}

func (s *leadStore) UpsertByPropertyURL(ctx context.Context, lead *model.Lead) error {
	// Stage and owner contact survive a re-import; the listing fields
	// refresh from the scrape.
	row, err := scanLead(s.q.QueryRow(ctx, `
		INSERT INTO leads (id, workspace_id, source, stage, street, city, state, zip, price,
			property_url, owner_name, owner_phone, owner_email, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (workspace_id, property_url) DO UPDATE SET
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip = EXCLUDED.zip,
			price = EXCLUDED.price,
			extra = COALESCE(EXCLUDED.extra, leads.extra),
			owner_name = COALESCE(leads.owner_name, EXCLUDED.owner_name),
			owner_phone = COALESCE(leads.owner_phone, EXCLUDED.owner_phone),
			owner_email = COALESCE(leads.owner_email, EXCLUDED.owner_email),
			updated_at = NOW()
		RETURNING `+leadColumns,
		lead.ID, lead.WorkspaceID, lead.Source, lead.Stage, lead.Street, lead.City,
		lead.State, lead.Zip, lead.Price, lead.PropertyURL, lead.OwnerName,
		lead.OwnerPhone, lead.OwnerEmail, lead.Extra))
	if err != nil {
		return err
	}
	*lead = *row
	return nil
}

func (s *leadStore) Update(ctx context.Context, lead *model.Lead) error {
	row, err := scanLead(s.q.QueryRow(ctx, `
		UPDATE leads SET stage = $2, street = $3, city = $4, state = $5, zip = $6,
			price = $7, owner_name = $8, owner_phone = $9, owner_email = $10,
			extra = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING `+leadColumns,
		lead.ID, lead.Stage, lead.Street, lead.City, lead.State, lead.Zip,
		lead.Price, lead.OwnerName, lead.OwnerPhone, lead.OwnerEmail, lead.Extra))
	if err != nil {
		return err
	}
	*lead = *row
	return nil
}

func (s *leadStore) SetStage(ctx context.Context, id int64, stage model.LeadStage) error {
	_, err := s.q.Exec(ctx,
		`UPDATE leads SET stage = $2, updated_at = NOW() WHERE id = $1`, id, stage)
	return err
}

func (s *leadStore) MarkEnriched(ctx context.Context, id int64, ownerName, ownerPhone, ownerEmail *string, extra []byte) error {
	_, err := s.q.Exec(ctx, `
		UPDATE leads SET
			owner_name = COALESCE($2, owner_name),
			owner_phone = COALESCE($3, owner_phone),
			owner_email = COALESCE($4, owner_email),
			extra = COALESCE($5, extra),
			enriched_at = NOW(),
			updated_at = NOW()
		WHERE id = $1`, id, ownerName, ownerPhone, ownerEmail, extra)
	return err
}

func (s *leadStore) List(ctx context.Context, workspaceID int64, stage *model.LeadStage, limit, offset int32) ([]model.Lead, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE workspace_id = $1 AND ($2::text IS NULL OR stage = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, workspaceID, stage, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *leadStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	return err
}
