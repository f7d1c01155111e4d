package dto

import (
	"encoding/json"

	"leadmap.app/server/internal/model"
	"leadmap.app/server/internal/service"
)

type CreateLeadRequest struct {
	Street     string          `json:"street" binding:"required"`
	City       string          `json:"city" binding:"required"`
	State      string          `json:"state" binding:"required"`
	Zip        string          `json:"zip" binding:"required"`
	Source     *string         `json:"source,omitempty"`
	Price      *int64          `json:"price,omitempty"`
	OwnerName  *string         `json:"owner_name,omitempty"`
	OwnerPhone *string         `json:"owner_phone,omitempty"`
	OwnerEmail *string         `json:"owner_email,omitempty"`
	Extra      json.RawMessage `json:"extra,omitempty"`
}

func (r *CreateLeadRequest) ToModel(workspaceID int64) *model.Lead {
	lead := &model.Lead{
		WorkspaceID: workspaceID,
		Street:      r.Street,
		City:        r.City,
		State:       r.State,
		Zip:         r.Zip,
		Price:       r.Price,
		OwnerName:   r.OwnerName,
		OwnerPhone:  r.OwnerPhone,
		OwnerEmail:  r.OwnerEmail,
		Extra:       r.Extra,
	}
	if r.Source != nil {
		lead.Source = model.LeadSource(*r.Source)
	}
	return lead
}

type SetStageRequest struct {
	Stage string `json:"stage" binding:"required"`
}

type ImportListingsRequest struct {
	Source   string                  `json:"source" binding:"required"`
	Listings []service.ListingImport `json:"listings" binding:"required,min=1,max=500"`
}
