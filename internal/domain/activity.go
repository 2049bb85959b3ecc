package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// ActivityType is the closed enum of audit event kinds.
type ActivityType string

const (
	ActivityLeadCreatedAuto     ActivityType = "lead_created_auto"
	ActivityLeadCreatedManual   ActivityType = "lead_created_manual"
	ActivityStatusChanged       ActivityType = "status_changed"
	ActivityLeadConverted       ActivityType = "lead_converted"
	ActivityConvertedToClient   ActivityType = "converted_to_client"
	ActivityClientCreatedManual ActivityType = "client_created_manual"
	ActivityLeadDeleted         ActivityType = "lead_deleted"
	ActivityDealCreated         ActivityType = "deal_created"
	ActivityDealCompleted       ActivityType = "deal_completed"
	ActivityNoteAdded           ActivityType = "note_added"
)

func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityLeadCreatedAuto, ActivityLeadCreatedManual, ActivityStatusChanged,
		ActivityLeadConverted, ActivityConvertedToClient, ActivityClientCreatedManual,
		ActivityLeadDeleted, ActivityDealCreated, ActivityDealCompleted, ActivityNoteAdded:
		return true
	}
	return false
}

// EntityKind tags which entity an activity record audits.
type EntityKind string

const (
	EntityLead   EntityKind = "lead"
	EntityClient EntityKind = "client"
	EntityDeal   EntityKind = "deal"
)

func (k EntityKind) IsValid() bool {
	switch k {
	case EntityLead, EntityClient, EntityDeal:
		return true
	}
	return false
}

// EntityRef is a tagged union: every activity references exactly one entity.
// Cross-entity events (the conversion pair) carry the secondary id in
// Metadata instead of a second nullable reference column.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r EntityRef) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// Metadata keys used by the consistency manager.
const (
	MetaOldStatus    = "oldStatus"
	MetaNewStatus    = "newStatus"
	MetaClientID     = "clientId"
	MetaSourceLeadID = "sourceLeadId"
)

// Activity is an immutable, append-only audit record. Once written it is
// never mutated; the only deletion path is the deal cascade.
type Activity struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	Description string       `json:"description"`

	Ref EntityRef `json:"ref"`

	// Admin email, or "system" for public form intake.
	PerformedBy string `json:"performedBy"`

	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// SystemActor is the PerformedBy value for unattended writes.
const SystemActor = "system"

// CreateActivityRequest is the DTO for manual activity creation (e.g. a note
// logged from the admin UI). The workflow-generated types are produced by the
// services only.
type CreateActivityRequest struct {
	Type        ActivityType      `json:"type" validate:"required"`
	Description string            `json:"description" validate:"required,min=1,max=2000"`
	EntityKind  EntityKind        `json:"entityKind" validate:"required"`
	EntityID    string            `json:"entityId" validate:"required,min=1"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ListActivitiesParams filters the activity ledger. At most one entity filter
// is honored; Kind and EntityID go together.
type ListActivitiesParams struct {
	Kind     *EntityKind
	EntityID *string
	Type     *ActivityType
	Limit    int
}

func (r *CreateActivityRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return err
	}
	if !r.Type.IsValid() {
		return &VocabularyError{Field: "type", Value: string(r.Type)}
	}
	if !r.EntityKind.IsValid() {
		return &VocabularyError{Field: "entityKind", Value: string(r.EntityKind)}
	}
	return nil
}

// VocabularyError reports a value outside the configured or compiled
// vocabulary for a field. Mutations carrying one are rejected fail-closed.
type VocabularyError struct {
	Field string
	Value string
}

func (e *VocabularyError) Error() string {
	return "invalid value " + e.Value + " for field " + e.Field
}
