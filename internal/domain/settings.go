package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// SettingsID is the fixed id of the singleton settings document.
const SettingsID = "crm-settings"

// StageDef is one configurable status value with its board presentation.
type StageDef struct {
	Key   string `json:"key" validate:"required,min=1,max=100"`
	Label string `json:"label" validate:"required,min=1,max=100"`
	Color string `json:"color,omitempty" validate:"omitempty,max=50"`
}

// CrmSettings is the singleton vocabulary document. Every lead mutation is
// validated against it; when the row is absent the compiled defaults apply.
type CrmSettings struct {
	ID string `json:"id"`

	PipelineStages []StageDef `json:"pipelineStages" validate:"required,min=1,dive"`
	DealStatuses   []StageDef `json:"dealStatuses" validate:"required,min=1,dive"`
	LeadSources    []string   `json:"leadSources" validate:"required,min=1,dive,min=1,max=100"`
	ServiceTypes   []string   `json:"serviceTypes" validate:"required,min=1,dive,min=1,max=100"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultSettings returns the compiled-in vocabulary used until an admin
// customizes it.
func DefaultSettings() *CrmSettings {
	return &CrmSettings{
		ID: SettingsID,
		PipelineStages: []StageDef{
			{Key: "new", Label: "New", Color: "blue"},
			{Key: "contacted", Label: "Contacted", Color: "cyan"},
			{Key: "site_visit", Label: "Site Visit", Color: "teal"},
			{Key: "quoted", Label: "Quoted", Color: "amber"},
			{Key: "negotiating", Label: "Negotiating", Color: "orange"},
			{Key: "won", Label: "Won", Color: "green"},
			{Key: "lost", Label: "Lost", Color: "red"},
		},
		DealStatuses: []StageDef{
			{Key: "planning", Label: "Planning", Color: "blue"},
			{Key: "permitting", Label: "Permitting", Color: "purple"},
			{Key: "in_progress", Label: "In Progress", Color: "amber"},
			{Key: "inspection", Label: "Inspection", Color: "cyan"},
			{Key: "completed", Label: "Completed", Color: "green"},
			{Key: "warranty", Label: "Warranty", Color: "teal"},
			{Key: "paused", Label: "Paused", Color: "gray"},
			{Key: "cancelled", Label: "Cancelled", Color: "red"},
		},
		LeadSources: []string{
			"website", "referral", "google", "facebook", "yard_sign", "repeat_client", "other",
		},
		ServiceTypes: []string{
			"kitchen_remodel", "bathroom_remodel", "basement_finish", "deck_patio",
			"roofing", "siding", "windows_doors", "addition", "flooring", "painting", "other",
		},
	}
}

// DefaultLeadStatus is the pipeline stage assigned when a create request
// omits one.
const DefaultLeadStatus = "new"

// HasPipelineStage reports whether key is a configured lead pipeline stage.
func (s *CrmSettings) HasPipelineStage(key string) bool {
	for _, st := range s.PipelineStages {
		if st.Key == key {
			return true
		}
	}
	return false
}

// HasDealStatus reports whether key is a configured deal status.
func (s *CrmSettings) HasDealStatus(key string) bool {
	for _, st := range s.DealStatuses {
		if st.Key == key {
			return true
		}
	}
	return false
}

// HasLeadSource reports whether src is a configured lead source.
func (s *CrmSettings) HasLeadSource(src string) bool {
	for _, v := range s.LeadSources {
		if v == src {
			return true
		}
	}
	return false
}

// HasServiceType reports whether st is a configured service type.
func (s *CrmSettings) HasServiceType(st string) bool {
	for _, v := range s.ServiceTypes {
		if v == st {
			return true
		}
	}
	return false
}

// UpdateSettingsRequest replaces the whole vocabulary document.
type UpdateSettingsRequest struct {
	PipelineStages []StageDef `json:"pipelineStages" validate:"required,min=1,dive"`
	DealStatuses   []StageDef `json:"dealStatuses" validate:"required,min=1,dive"`
	LeadSources    []string   `json:"leadSources" validate:"required,min=1,dive,min=1,max=100"`
	ServiceTypes   []string   `json:"serviceTypes" validate:"required,min=1,dive,min=1,max=100"`
}

func (r *UpdateSettingsRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
