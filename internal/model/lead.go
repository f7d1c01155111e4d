package model

import (
	"encoding/json"
	"time"
)

type LeadStage string

const (
	LeadStageNew         LeadStage = "new"
	LeadStageContacted   LeadStage = "contacted"
	LeadStageNurturing   LeadStage = "nurturing"
	LeadStageAppointment LeadStage = "appointment"
	LeadStageClosed      LeadStage = "closed"
	LeadStageLost        LeadStage = "lost"
)

// Valid reports whether s is a known pipeline stage.
func (s LeadStage) Valid() bool {
	switch s {
	case LeadStageNew, LeadStageContacted, LeadStageNurturing,
		LeadStageAppointment, LeadStageClosed, LeadStageLost:
		return true
	}
	return false
}

type LeadSource string

const (
	LeadSourceFSBO   LeadSource = "fsbo"
	LeadSourceImport LeadSource = "import"
	LeadSourceManual LeadSource = "manual"
)

// Lead is a property-backed CRM lead. PropertyURL is the natural key
// for imported listings: imports upsert on (workspace_id, property_url).
type Lead struct {
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	EnrichedAt *time.Time `json:"enriched_at,omitempty"`
	// Extra holds scraped fields that don't map to first-class columns.
	Extra       json.RawMessage `json:"extra,omitempty"`
	OwnerName   *string         `json:"owner_name,omitempty"`
	OwnerPhone  *string         `json:"owner_phone,omitempty"`
	OwnerEmail  *string         `json:"owner_email,omitempty"`
	PropertyURL *string         `json:"property_url,omitempty"`
	Street      string          `json:"street"`
	City        string          `json:"city"`
	State       string          `json:"state"`
	Zip         string          `json:"zip"`
	Stage       LeadStage       `json:"stage"`
	Source      LeadSource      `json:"source"`
	Price       *int64          `json:"price,omitempty"`
	ID          int64           `json:"id,string"`
	WorkspaceID int64           `json:"workspace_id,string"`
}
