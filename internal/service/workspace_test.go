package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/service"
	"leadmap.app/server/internal/store"
)

var _ = Describe("WorkspaceService", func() {
	var (
		workspaces *mockWorkspaceStore
		users      *mockUserStore
		svc        *service.WorkspaceService
		ctx        context.Context
	)

	const (
		workspaceID = int64(300)
		ownerID     = int64(1)
		memberID    = int64(2)
	)

	memberOf := func(userID int64, role model.MemberRole) {
		workspaces.getMemberFn = func(_ context.Context, wsID, uID int64) (*model.WorkspaceMember, error) {
			if wsID == workspaceID && uID == userID {
				return &model.WorkspaceMember{WorkspaceID: wsID, UserID: uID, Role: role}, nil
			}
			return nil, store.ErrNotFound
		}
	}

	BeforeEach(func() {
		workspaces = &mockWorkspaceStore{}
		users = &mockUserStore{}
		stores := &store.Stores{Workspaces: workspaces, Users: users}
		svc = service.NewWorkspaceService(stores, &mockTxRunner{stores: stores}, nil)
		ctx = context.Background()
	})

	Describe("Create", func() {
		It("creates the workspace and makes the creator its owner", func() {
			var created *model.Workspace
			var addedMember *model.WorkspaceMember
			workspaces.createFn = func(_ context.Context, ws *model.Workspace) error {
				created = ws
				return nil
			}
			workspaces.addMemberFn = func(_ context.Context, m *model.WorkspaceMember) error {
				addedMember = m
				return nil
			}

			workspace, err := svc.Create(ctx, ownerID, "Lakeview Realty")
			Expect(err).NotTo(HaveOccurred())
			Expect(workspace.OwnerUserID).To(Equal(ownerID))
			Expect(workspace.Slug).To(HavePrefix("lakeview-realty"))
			Expect(created).To(Equal(workspace))

			Expect(addedMember).NotTo(BeNil())
			Expect(addedMember.UserID).To(Equal(ownerID))
			Expect(addedMember.Role).To(Equal(model.MemberRoleOwner))
		})

		It("disambiguates a taken slug with the workspace id", func() {
			workspaces.getBySlugFn = func(_ context.Context, slug string) (*model.Workspace, error) {
				return &model.Workspace{Slug: slug}, nil
			}

			workspace, err := svc.Create(ctx, ownerID, "Lakeview Realty")
			Expect(err).NotTo(HaveOccurred())
			Expect(workspace.Slug).NotTo(Equal("lakeview-realty"))
			Expect(workspace.Slug).To(HavePrefix("lakeview-realty-"))
		})
	})

	Describe("Authorize", func() {
		It("returns the membership for a member", func() {
			memberOf(memberID, model.MemberRoleMember)

			member, err := svc.Authorize(ctx, workspaceID, memberID)
			Expect(err).NotTo(HaveOccurred())
			Expect(member.Role).To(Equal(model.MemberRoleMember))
		})

		It("rejects non-members", func() {
			_, err := svc.Authorize(ctx, workspaceID, memberID)
			Expect(err).To(MatchError(service.ErrNotAMember))
		})
	})

	Describe("Rename", func() {
		BeforeEach(func() {
			workspaces.getByIDFn = func(context.Context, int64) (*model.Workspace, error) {
				return &model.Workspace{ID: workspaceID, OwnerUserID: ownerID, Name: "Old"}, nil
			}
		})

		It("lets the owner rename", func() {
			memberOf(ownerID, model.MemberRoleOwner)

			workspace, err := svc.Rename(ctx, workspaceID, ownerID, "New Name")
			Expect(err).NotTo(HaveOccurred())
			Expect(workspace.Name).To(Equal("New Name"))
		})

		It("refuses plain members", func() {
			memberOf(memberID, model.MemberRoleMember)

			_, err := svc.Rename(ctx, workspaceID, memberID, "New Name")
			Expect(err).To(MatchError(service.ErrOwnerOnly))
		})
	})

	Describe("AddMember", func() {
		BeforeEach(func() {
			memberOf(ownerID, model.MemberRoleOwner)
		})

		It("adds an existing user by email", func() {
			users.getByEmailFn = func(_ context.Context, email string) (*model.User, error) {
				Expect(email).To(Equal("new@example.com"))
				return &model.User{ID: memberID, Email: email}, nil
			}

			member, err := svc.AddMember(ctx, workspaceID, ownerID, "new@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(member.UserID).To(Equal(memberID))
			Expect(member.Role).To(Equal(model.MemberRoleMember))
		})

		It("reports an unknown email as not found", func() {
			_, err := svc.AddMember(ctx, workspaceID, ownerID, "nobody@example.com")
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("refuses non-owners", func() {
			memberOf(memberID, model.MemberRoleMember)

			_, err := svc.AddMember(ctx, workspaceID, memberID, "new@example.com")
			Expect(err).To(MatchError(service.ErrOwnerOnly))
		})
	})

	Describe("RemoveMember", func() {
		BeforeEach(func() {
			memberOf(ownerID, model.MemberRoleOwner)
			workspaces.getByIDFn = func(context.Context, int64) (*model.Workspace, error) {
				return &model.Workspace{ID: workspaceID, OwnerUserID: ownerID}, nil
			}
		})

		It("removes a plain member", func() {
			var removed int64
			workspaces.removeMemberFn = func(_ context.Context, _, userID int64) error {
				removed = userID
				return nil
			}

			Expect(svc.RemoveMember(ctx, workspaceID, ownerID, memberID)).To(Succeed())
			Expect(removed).To(Equal(memberID))
		})

		It("never removes the owner", func() {
			err := svc.RemoveMember(ctx, workspaceID, ownerID, ownerID)
			Expect(err).To(MatchError(service.ErrCannotRemoveOwner))
		})

		It("refuses non-owners", func() {
			memberOf(memberID, model.MemberRoleMember)

			err := svc.RemoveMember(ctx, workspaceID, memberID, ownerID)
			Expect(err).To(MatchError(service.ErrOwnerOnly))
		})
	})
})
