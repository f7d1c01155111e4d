package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"leadmap.app/server/core/db"
	"leadmap.app/server/internal/model"
)

type workspaceStore struct {
	q db.Querier
}

func newWorkspaceStore(q db.Querier) WorkspaceStore {
	return &workspaceStore{q: q}
}

const workspaceColumns = `id, owner_user_id, name, slug, created_at, updated_at, is_deleted`

func scanWorkspace(row pgx.Row) (*model.Workspace, error) {
	var ws model.Workspace
	err := row.Scan(&ws.ID, &ws.OwnerUserID, &ws.Name, &ws.Slug, &ws.CreatedAt, &ws.UpdatedAt, &ws.IsDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

func (s *workspaceStore) GetByID(ctx context.Context, id int64) (*model.Workspace, error) {
	return scanWorkspace(s.q.QueryRow(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1 AND NOT is_deleted`, id))
}

func (s *workspaceStore) GetBySlug(ctx context.Context, slug string) (*model.Workspace, error) {
	return scanWorkspace(s.q.QueryRow(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE slug = $1 AND NOT is_deleted`, slug))
}

func (s *workspaceStore) Create(ctx context.Context, ws *model.Workspace) error {
	row, err := scanWorkspace(s.q.QueryRow(ctx, `
		INSERT INTO workspaces (id, owner_user_id, name, slug)
		VALUES ($1, $2, $3, $4)
		RETURNING `+workspaceColumns,
		ws.ID, ws.OwnerUserID, ws.Name, ws.Slug))
	if err != nil {
		return err
	}
	*ws = *row
	return nil
}

func (s *workspaceStore) Update(ctx context.Context, ws *model.Workspace) error {
	row, err := scanWorkspace(s.q.QueryRow(ctx, `
		UPDATE workspaces SET name = $2, slug = $3, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+workspaceColumns,
		ws.ID, ws.Name, ws.Slug))
	if err != nil {
		return err
	}
	*ws = *row
	return nil
}

func (s *workspaceStore) Delete(ctx context.Context, id int64) error {
	_, err := s.q.Exec(ctx,
		`UPDATE workspaces SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (s *workspaceStore) ListByUser(ctx context.Context, userID int64) ([]model.Workspace, error) {
	rows, err := s.q.Query(ctx, `
		SELECT w.id, w.owner_user_id, w.name, w.slug, w.created_at, w.updated_at, w.is_deleted
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1 AND NOT w.is_deleted
		ORDER BY w.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		var ws model.Workspace
		if err := rows.Scan(&ws.ID, &ws.OwnerUserID, &ws.Name, &ws.Slug, &ws.CreatedAt, &ws.UpdatedAt, &ws.IsDeleted); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

func (s *workspaceStore) AddMember(ctx context.Context, member *model.WorkspaceMember) error {
	return s.q.QueryRow(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING created_at`,
		member.WorkspaceID, member.UserID, member.Role).Scan(&member.CreatedAt)
}

func (s *workspaceStore) GetMember(ctx context.Context, workspaceID, userID int64) (*model.WorkspaceMember, error) {
	var m model.WorkspaceMember
	err := s.q.QueryRow(ctx, `
		SELECT workspace_id, user_id, role, created_at
		FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID).
		Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *workspaceStore) ListMembers(ctx context.Context, workspaceID int64) ([]model.WorkspaceMember, error) {
	rows, err := s.q.Query(ctx, `
		SELECT workspace_id, user_id, role, created_at
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkspaceMember
	for rows.Next() {
		var m model.WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *workspaceStore) RemoveMember(ctx context.Context, workspaceID, userID int64) error {
	_, err := s.q.Exec(ctx,
		`DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`,
		workspaceID, userID)
	return err
}
