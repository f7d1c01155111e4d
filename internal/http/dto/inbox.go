package dto

import "leadmap.app/server/internal/model"

type ThreadDetailResponse struct {
	Thread   *model.EmailThread   `json:"thread"`
	Messages []model.EmailMessage `json:"messages"`
}

type SetReadRequest struct {
	Unread bool `json:"unread"`
}

type SetStarredRequest struct {
	Starred bool `json:"starred"`
}

type LinkLeadRequest struct {
	LeadID int64 `json:"lead_id,string" binding:"required"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
}
