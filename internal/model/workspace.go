package model

import "time"

type Workspace struct {
	ID          int64     `json:"id,string"`
	OwnerUserID int64     `json:"owner_user_id,string"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsDeleted   bool      `json:"-"` // internal, not exposed in API
}

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleMember MemberRole = "member"
)

type WorkspaceMember struct {
	WorkspaceID int64      `json:"workspace_id,string"`
	UserID      int64      `json:"user_id,string"`
	Role        MemberRole `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
}
