package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DealStatusCompleted is the one status value with a dedicated activity type
// (deal_completed instead of the generic status_changed).
const DealStatusCompleted = "completed"

// Deal is a contracted project belonging to exactly one client. Status values
// come from the CrmSettings deal-status vocabulary. Deleting a deal cascades
// to its activity records; this is the only place activities are removed.
type Deal struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`

	Title    string `json:"title"`
	DealType string `json:"dealType,omitempty"`
	Status   string `json:"status"`

	Value *float64 `json:"value,omitempty"`

	// Ordered scope-of-work lines as shown on the project sheet.
	Scope []string `json:"scope,omitempty"`

	StartDate   *time.Time `json:"startDate,omitempty"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateDealRequest struct {
	ClientID string `json:"clientId" validate:"required,min=1"`
	Title    string `json:"title" validate:"required,min=1,max=255"`
	DealType string `json:"dealType,omitempty" validate:"omitempty,max=100"`
	Status   string `json:"status,omitempty" validate:"omitempty,max=100"`

	Value *float64 `json:"value,omitempty" validate:"omitempty,gte=0"`

	Scope []string `json:"scope,omitempty" validate:"omitempty,max=50,dive,min=1,max=500"`

	StartDate  *time.Time `json:"startDate,omitempty"`
	TargetDate *time.Time `json:"targetDate,omitempty"`
}

// UpdateDealRequest carries PATCH semantics: nil means "leave unchanged".
type UpdateDealRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	DealType *string `json:"dealType,omitempty" validate:"omitempty,max=100"`
	Status   *string `json:"status,omitempty" validate:"omitempty,max=100"`

	Value *float64 `json:"value,omitempty" validate:"omitempty,gte=0"`

	Scope *[]string `json:"scope,omitempty" validate:"omitempty,max=50,dive,min=1,max=500"`

	StartDate  *time.Time `json:"startDate,omitempty"`
	TargetDate *time.Time `json:"targetDate,omitempty"`
}

// DealPatch is the persistence-level partial update built by the service.
type DealPatch struct {
	Title    *string
	DealType *string
	Status   *string
	Value    *float64
	Scope    *[]string

	StartDate   *time.Time
	TargetDate  *time.Time
	CompletedAt *time.Time
}

// ListDealsParams filters the deal listing.
type ListDealsParams struct {
	ClientID *string
	Status   *string
	Limit    int
}

func (r *CreateDealRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)

	validate := validator.New()
	return validate.Struct(r)
}

func (r *UpdateDealRequest) Validate() error {
	if r.Title != nil {
		trimmed := strings.TrimSpace(*r.Title)
		r.Title = &trimmed
	}

	validate := validator.New()
	return validate.Struct(r)
}

func (r *UpdateDealRequest) Patch() DealPatch {
	return DealPatch{
		Title:      r.Title,
		DealType:   r.DealType,
		Status:     r.Status,
		Value:      r.Value,
		Scope:      r.Scope,
		StartDate:  r.StartDate,
		TargetDate: r.TargetDate,
	}
}
