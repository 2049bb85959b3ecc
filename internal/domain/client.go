package domain

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ClientStatus is the small fixed lifecycle for clients; unlike lead pipeline
// stages it is not configurable.
type ClientStatus string

const (
	ClientStatusActive ClientStatus = "active"
	ClientStatusPast   ClientStatus = "past"
)

func (s ClientStatus) IsValid() bool {
	return s == ClientStatusActive || s == ClientStatusPast
}

// Client is a converted or directly-created customer. DealCount and
// TotalValue are derived by aggregation at read time, never stored.
type Client struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`

	Status      ClientStatus `json:"status"`
	ClientSince time.Time    `json:"clientSince"`

	// Back-reference to the lead this client was converted from, if any.
	SourceLeadID *string `json:"sourceLead,omitempty"`

	DealCount  int     `json:"dealCount"`
	TotalValue float64 `json:"totalValue"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateClientRequest creates a client directly, or converts a lead when
// SourceLeadID is set (the conversion protocol in the client service).
type CreateClientRequest struct {
	FullName string `json:"fullName" validate:"required,min=1,max=255"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address  string `json:"address,omitempty" validate:"omitempty,max=500"`

	Status ClientStatus `json:"status,omitempty" validate:"omitempty,oneof=active past"`

	SourceLeadID *string `json:"sourceLeadId,omitempty" validate:"omitempty,min=1"`
}

// UpdateClientRequest carries PATCH semantics: nil means "leave unchanged".
type UpdateClientRequest struct {
	FullName *string `json:"fullName,omitempty" validate:"omitempty,min=1,max=255"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=500"`

	Status *ClientStatus `json:"status,omitempty" validate:"omitempty,oneof=active past"`
}

// ClientPatch is the persistence-level partial update built by the service.
type ClientPatch struct {
	FullName *string
	Email    *string
	Phone    *string
	Address  *string
	Status   *ClientStatus
}

// ListClientsParams filters the client listing.
type ListClientsParams struct {
	Status *ClientStatus
	Limit  int
}

func (r *CreateClientRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)

	validate := validator.New()
	return validate.Struct(r)
}

func (r *UpdateClientRequest) Validate() error {
	if r.FullName != nil {
		trimmed := strings.TrimSpace(*r.FullName)
		r.FullName = &trimmed
	}

	validate := validator.New()
	return validate.Struct(r)
}

func (r *UpdateClientRequest) Patch() ClientPatch {
	return ClientPatch{
		FullName: r.FullName,
		Email:    r.Email,
		Phone:    r.Phone,
		Address:  r.Address,
		Status:   r.Status,
	}
}
