package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/observability/logger"
)

// ErrLeadAlreadyDeleted rejects a second delete of the same lead.
var ErrLeadAlreadyDeleted = errors.New("lead already deleted")

// LeadService owns the lead lifecycle. Every mutation writes its activity
// record in the same transaction as the entity write, so the audit ledger can
// never drift from the entities it describes.
type LeadService struct {
	store    Store
	settings *SettingsService
	log      *logger.Logger
}

func NewLeadService(store Store, settings *SettingsService, log *logger.Logger) *LeadService {
	return &LeadService{store: store, settings: settings, log: log}
}

// validateVocabulary checks status/source/serviceType against the configured
// vocabulary. Empty values are skipped (the field was not supplied). A
// settings read failure propagates, which rejects the mutation: unknown
// vocabulary is treated the same as invalid vocabulary.
func (s *LeadService) validateVocabulary(ctx context.Context, status, source, serviceType string) error {
	vocab, err := s.settings.Vocabulary(ctx)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	if status != "" && !vocab.HasPipelineStage(status) {
		return &domain.VocabularyError{Field: "status", Value: status}
	}
	if source != "" && !vocab.HasLeadSource(source) {
		return &domain.VocabularyError{Field: "source", Value: source}
	}
	if serviceType != "" && !vocab.HasServiceType(serviceType) {
		return &domain.VocabularyError{Field: "serviceType", Value: serviceType}
	}
	return nil
}

// Create inserts a lead and its creation activity atomically. origin decides
// the activity type: the public contact form produces lead_created_auto under
// the system actor, an admin produces lead_created_manual under their email.
func (s *LeadService) Create(ctx context.Context, req *domain.CreateLeadRequest, origin domain.LeadOrigin, performedBy string) (*domain.Lead, error) {
	if !origin.IsValid() {
		return nil, &domain.VocabularyError{Field: "origin", Value: string(origin)}
	}
	if err := s.validateVocabulary(ctx, req.Status, req.Source, req.ServiceType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	lead := &domain.Lead{
		ID:             uuid.NewString(),
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		Origin:         origin,
		Source:         req.Source,
		ServiceType:    req.ServiceType,
		Message:        req.Message,
		Priority:       req.Priority,
		Status:         req.Status,
		EstimatedValue: req.EstimatedValue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if lead.Status == "" {
		lead.Status = domain.DefaultLeadStatus
	}
	if lead.Priority == "" {
		lead.Priority = domain.LeadPriorityMedium
	}

	actType := domain.ActivityLeadCreatedManual
	description := fmt.Sprintf("Lead %q created", lead.FullName)
	if origin == domain.LeadOriginAutoWebsiteForm {
		actType = domain.ActivityLeadCreatedAuto
		description = fmt.Sprintf("New lead %q from website contact form", lead.FullName)
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Leads().Create(ctx, lead); err != nil {
			return fmt.Errorf("create lead: %w", err)
		}
		return tx.Activities().Create(ctx, &domain.Activity{
			ID:          uuid.NewString(),
			Type:        actType,
			Description: description,
			Ref:         domain.EntityRef{Kind: domain.EntityLead, ID: lead.ID},
			PerformedBy: performedBy,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "lead created",
		logger.Module("lead"),
		logger.Action("create"),
		zap.String("lead_id", lead.ID),
		zap.String("origin", string(origin)),
	)

	return lead, nil
}

// Get returns a lead. Soft-deleted leads are reported as not found.
func (s *LeadService) Get(ctx context.Context, id string) (*domain.Lead, error) {
	lead, err := s.store.Leads().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.Deleted {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

// List returns the paginated lead listing; soft-deleted leads never appear.
func (s *LeadService) List(ctx context.Context, params domain.ListLeadsParams) (*domain.LeadListResponse, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 50
	}

	leads, total, nextCursor, err := s.store.Leads().List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	resp := &domain.LeadListResponse{Data: leads}
	resp.Meta.Total = total
	resp.Meta.HasNextPage = nextCursor != ""
	if nextCursor != "" {
		resp.Meta.NextCursor = &nextCursor
	}
	return resp, nil
}

// Update patches a lead. A status change additionally appends a
// status_changed activity carrying the old and new values; submitting the
// status the lead already has is a plain field update with no status
// activity.
func (s *LeadService) Update(ctx context.Context, id string, req *domain.UpdateLeadRequest, performedBy string) (*domain.Lead, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var status, source, serviceType string
	if req.Status != nil {
		status = *req.Status
	}
	if req.Source != nil {
		source = *req.Source
	}
	if req.ServiceType != nil {
		serviceType = *req.ServiceType
	}
	if err := s.validateVocabulary(ctx, status, source, serviceType); err != nil {
		return nil, err
	}

	patch := req.Patch()
	statusChanged := req.Status != nil && *req.Status != current.Status

	if !statusChanged {
		return s.store.Leads().Update(ctx, id, patch)
	}

	var updated *domain.Lead
	err = s.store.InTx(ctx, func(tx Store) error {
		updated, err = tx.Leads().Update(ctx, id, patch)
		if err != nil {
			return fmt.Errorf("update lead: %w", err)
		}
		return tx.Activities().Create(ctx, &domain.Activity{
			ID:          uuid.NewString(),
			Type:        domain.ActivityStatusChanged,
			Description: fmt.Sprintf("Lead status changed from %s to %s", current.Status, *req.Status),
			Ref:         domain.EntityRef{Kind: domain.EntityLead, ID: id},
			PerformedBy: performedBy,
			Metadata: map[string]string{
				domain.MetaOldStatus: current.Status,
				domain.MetaNewStatus: *req.Status,
			},
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "lead status changed",
		logger.Module("lead"),
		logger.Action("update"),
		zap.String("lead_id", id),
		zap.String("old_status", current.Status),
		zap.String("new_status", *req.Status),
	)

	return updated, nil
}

// Delete soft-deletes a lead and records the deletion atomically. The lead
// row and its activity history survive; listings and lookups stop showing it.
// Deleting an already-deleted lead is rejected.
func (s *LeadService) Delete(ctx context.Context, id string, performedBy string) error {
	current, err := s.store.Leads().Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Deleted {
		return ErrLeadAlreadyDeleted
	}

	now := time.Now().UTC()
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Leads().MarkDeleted(ctx, id, now); err != nil {
			return fmt.Errorf("mark lead deleted: %w", err)
		}
		return tx.Activities().Create(ctx, &domain.Activity{
			ID:          uuid.NewString(),
			Type:        domain.ActivityLeadDeleted,
			Description: fmt.Sprintf("Lead %q deleted", current.FullName),
			Ref:         domain.EntityRef{Kind: domain.EntityLead, ID: id},
			PerformedBy: performedBy,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "lead deleted",
		logger.Module("lead"),
		logger.Action("delete"),
		zap.String("lead_id", id),
	)
	return nil
}
