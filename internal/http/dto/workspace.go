package dto

type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

type RenameWorkspaceRequest struct {
	Name string `json:"name" binding:"required,min=1,max=255"`
}

type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
}
