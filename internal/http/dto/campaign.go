package dto

type CreateCampaignRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=255"`
	MailboxID int64  `json:"mailbox_id,string" binding:"required"`
}

type SetCampaignStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft active paused"`
}

type AddStepRequest struct {
	Position     int32  `json:"position" binding:"required,min=1"`
	DelayHours   int32  `json:"delay_hours" binding:"min=0"`
	Subject      string `json:"subject" binding:"required"`
	BodyTemplate string `json:"body_template" binding:"required"`
}

type EnrollLeadRequest struct {
	LeadID int64 `json:"lead_id,string" binding:"required"`
}
