package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"leadmap.app/server/common"
	"leadmap.app/server/common/id"
	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/store"
)

var (
	ErrNotAMember        = errors.New("user is not a member of this workspace")
	ErrOwnerOnly         = errors.New("only the workspace owner may do this")
	ErrCannotRemoveOwner = errors.New("the owner cannot be removed")
)

// WorkspaceService owns the tenancy layer: workspaces, membership, and
// the authorization check every workspace-scoped request goes through.
type WorkspaceService struct {
	stores   *store.Stores
	txRunner TxRunner
	logger   *slog.Logger
}

func NewWorkspaceService(stores *store.Stores, txRunner TxRunner, logger *slog.Logger) *WorkspaceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceService{
		stores:   stores,
		txRunner: txRunner,
		logger:   logger,
	}
}

// Create makes a workspace and enrolls the creator as its owner.
func (s *WorkspaceService) Create(ctx context.Context, ownerUserID int64, name string) (*model.Workspace, error) {
	workspaceID := id.New()
	slug, err := common.Slugify(name, strconv.FormatInt(workspaceID, 10))
	if err != nil {
		return nil, fmt.Errorf("deriving slug: %w", err)
	}

	if _, err := s.stores.Workspaces.GetBySlug(ctx, slug); err == nil {
		// Same name twice is fine; disambiguate with the id.
		slug = slug + "-" + strconv.FormatInt(workspaceID, 10)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking slug: %w", err)
	}

	workspace := &model.Workspace{
		ID:          workspaceID,
		OwnerUserID: ownerUserID,
		Name:        name,
		Slug:        slug,
	}

	err = s.txRunner.WithTx(ctx, func(stores *store.Stores) error {
		if err := stores.Workspaces.Create(ctx, workspace); err != nil {
			return fmt.Errorf("creating workspace: %w", err)
		}
		return stores.Workspaces.AddMember(ctx, &model.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      ownerUserID,
			Role:        model.MemberRoleOwner,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "created workspace",
		"workspace_id", workspace.ID, "slug", workspace.Slug)
	return workspace, nil
}

// Authorize returns the caller's membership, or ErrNotAMember.
func (s *WorkspaceService) Authorize(ctx context.Context, workspaceID, userID int64) (*model.WorkspaceMember, error) {
	member, err := s.stores.Workspaces.GetMember(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotAMember
		}
		return nil, fmt.Errorf("loading membership: %w", err)
	}
	return member, nil
}

func (s *WorkspaceService) Get(ctx context.Context, workspaceID, userID int64) (*model.Workspace, error) {
	if _, err := s.Authorize(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	return s.stores.Workspaces.GetByID(ctx, workspaceID)
}

func (s *WorkspaceService) List(ctx context.Context, userID int64) ([]model.Workspace, error) {
	return s.stores.Workspaces.ListByUser(ctx, userID)
}

func (s *WorkspaceService) Rename(ctx context.Context, workspaceID, userID int64, name string) (*model.Workspace, error) {
	if err := s.requireOwner(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	workspace, err := s.stores.Workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	workspace.Name = name
	if err := s.stores.Workspaces.Update(ctx, workspace); err != nil {
		return nil, fmt.Errorf("updating workspace: %w", err)
	}
	return workspace, nil
}

func (s *WorkspaceService) Delete(ctx context.Context, workspaceID, userID int64) error {
	if err := s.requireOwner(ctx, workspaceID, userID); err != nil {
		return err
	}
	return s.stores.Workspaces.Delete(ctx, workspaceID)
}

// AddMember invites a user by email. The user must have signed in at
// least once.
func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID, actorUserID int64, email string) (*model.WorkspaceMember, error) {
	if err := s.requireOwner(ctx, workspaceID, actorUserID); err != nil {
		return nil, err
	}

	user, err := s.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	member := &model.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      user.ID,
		Role:        model.MemberRoleMember,
	}
	if err := s.stores.Workspaces.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("adding member: %w", err)
	}
	return member, nil
}

func (s *WorkspaceService) ListMembers(ctx context.Context, workspaceID, userID int64) ([]model.WorkspaceMember, error) {
	if _, err := s.Authorize(ctx, workspaceID, userID); err != nil {
		return nil, err
	}
	return s.stores.Workspaces.ListMembers(ctx, workspaceID)
}

func (s *WorkspaceService) RemoveMember(ctx context.Context, workspaceID, actorUserID, memberUserID int64) error {
	if err := s.requireOwner(ctx, workspaceID, actorUserID); err != nil {
		return err
	}

	workspace, err := s.stores.Workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return err
	}
	if workspace.OwnerUserID == memberUserID {
		return ErrCannotRemoveOwner
	}

	return s.stores.Workspaces.RemoveMember(ctx, workspaceID, memberUserID)
}

func (s *WorkspaceService) requireOwner(ctx context.Context, workspaceID, userID int64) error {
	member, err := s.Authorize(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if member.Role != model.MemberRoleOwner {
		return ErrOwnerOnly
	}
	return nil
}
