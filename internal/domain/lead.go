package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// LeadOrigin distinguishes website form submissions from leads entered by an
// admin in the back office.
type LeadOrigin string

const (
	LeadOriginAutoWebsiteForm LeadOrigin = "auto_website_form"
	LeadOriginManual          LeadOrigin = "manual"
)

func (o LeadOrigin) IsValid() bool {
	return o == LeadOriginAutoWebsiteForm || o == LeadOriginManual
}

// LeadPriority is a fixed triage level, unlike Lead.Status which is
// data-driven via CrmSettings.
type LeadPriority string

const (
	LeadPriorityHigh   LeadPriority = "high"
	LeadPriorityMedium LeadPriority = "medium"
	LeadPriorityLow    LeadPriority = "low"
)

func (p LeadPriority) IsValid() bool {
	switch p {
	case LeadPriorityHigh, LeadPriorityMedium, LeadPriorityLow:
		return true
	}
	return false
}

// Lead is a prospective customer inquiry. Status values are validated against
// the CrmSettings pipeline stages, not a compiled enum. Leads are never hard
// deleted: Deleted/DeletedAt mark them hidden while their activity history
// stays referentially intact.
type Lead struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`

	Origin      LeadOrigin   `json:"origin"`
	Source      string       `json:"source,omitempty"`
	ServiceType string       `json:"serviceType,omitempty"`
	Message     string       `json:"message,omitempty"`
	Priority    LeadPriority `json:"priority"`
	Status      string       `json:"status"`

	EstimatedValue *float64 `json:"estimatedValue,omitempty"`

	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Set once the lead is converted; the terminal "won" back-reference.
	ConvertedToClientID *string `json:"convertedToClient,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateLeadRequest is the DTO for both admin lead creation and the public
// contact form. Status, Source and ServiceType are additionally checked
// against the CrmSettings vocabulary in the service layer (fail-closed).
type CreateLeadRequest struct {
	FullName string `json:"fullName" validate:"required,min=1,max=255"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=50"`

	Source      string `json:"source,omitempty" validate:"omitempty,max=100"`
	ServiceType string `json:"serviceType,omitempty" validate:"omitempty,max=100"`
	Message     string `json:"message,omitempty" validate:"omitempty,max=5000"`

	Status   string       `json:"status,omitempty" validate:"omitempty,max=100"`
	Priority LeadPriority `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`

	EstimatedValue *float64 `json:"estimatedValue,omitempty" validate:"omitempty,gte=0"`
}

// UpdateLeadRequest carries PATCH semantics: nil means "leave unchanged".
type UpdateLeadRequest struct {
	FullName *string `json:"fullName,omitempty" validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=50"`

	Source      *string `json:"source,omitempty" validate:"omitempty,max=100"`
	ServiceType *string `json:"serviceType,omitempty" validate:"omitempty,max=100"`
	Message     *string `json:"message,omitempty" validate:"omitempty,max=5000"`

	Status   *string       `json:"status,omitempty" validate:"omitempty,max=100"`
	Priority *LeadPriority `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`

	EstimatedValue *float64 `json:"estimatedValue,omitempty" validate:"omitempty,gte=0"`
}

// LeadPatch is the persistence-level partial update. It is built by the
// service, never decoded from a request, so it may touch fields the public
// DTOs cannot (conversion back-reference).
type LeadPatch struct {
	FullName       *string
	Email          *string
	Phone          *string
	Source         *string
	ServiceType    *string
	Message        *string
	Status         *string
	Priority       *LeadPriority
	EstimatedValue *float64

	ConvertedToClientID *string
}

// ListLeadsParams filters the paginated lead listing. Soft-deleted leads are
// always excluded by the store.
type ListLeadsParams struct {
	Status *string

	Limit  int
	Cursor *string // created_at cursor, RFC3339
}

// LeadListResponse is the paginated listing envelope.
type LeadListResponse struct {
	Data []Lead `json:"data"`
	Meta struct {
		Total       int     `json:"total"`
		HasNextPage bool    `json:"hasNextPage"`
		NextCursor  *string `json:"nextCursor,omitempty"`
	} `json:"meta"`
}

func (r *CreateLeadRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)

	validate := validator.New()
	return validate.Struct(r)
}

func (r *UpdateLeadRequest) Validate() error {
	if r.FullName != nil {
		trimmed := strings.TrimSpace(*r.FullName)
		r.FullName = &trimmed
	}
	if r.Email != nil {
		trimmed := strings.TrimSpace(*r.Email)
		r.Email = &trimmed
	}

	validate := validator.New()
	return validate.Struct(r)
}

// Patch converts the request into a persistence patch.
func (r *UpdateLeadRequest) Patch() LeadPatch {
	return LeadPatch{
		FullName:       r.FullName,
		Email:          r.Email,
		Phone:          r.Phone,
		Source:         r.Source,
		ServiceType:    r.ServiceType,
		Message:        r.Message,
		Status:         r.Status,
		Priority:       r.Priority,
		EstimatedValue: r.EstimatedValue,
	}
}
