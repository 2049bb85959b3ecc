package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/observability/logger"
)

// defaultDealStatus is the status assigned when a create request omits one.
const defaultDealStatus = "planning"

// DealService owns deals. Deal deletion is the one place activity records are
// ever removed: the deal and every activity referencing it go together.
type DealService struct {
	store    Store
	settings *SettingsService
	log      *logger.Logger
}

func NewDealService(store Store, settings *SettingsService, log *logger.Logger) *DealService {
	return &DealService{store: store, settings: settings, log: log}
}

func (s *DealService) validateStatus(ctx context.Context, status string) error {
	if status == "" {
		return nil
	}
	vocab, err := s.settings.Vocabulary(ctx)
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	if !vocab.HasDealStatus(status) {
		return &domain.VocabularyError{Field: "status", Value: status}
	}
	return nil
}

// Create inserts a deal and its deal_created activity atomically. The client
// must exist; deals are never orphaned at birth.
func (s *DealService) Create(ctx context.Context, req *domain.CreateDealRequest, performedBy string) (*domain.Deal, error) {
	if err := s.validateStatus(ctx, req.Status); err != nil {
		return nil, err
	}

	client, err := s.store.Clients().Get(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	deal := &domain.Deal{
		ID:         uuid.NewString(),
		ClientID:   client.ID,
		Title:      req.Title,
		DealType:   req.DealType,
		Status:     req.Status,
		Value:      req.Value,
		Scope:      req.Scope,
		StartDate:  req.StartDate,
		TargetDate: req.TargetDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if deal.Status == "" {
		deal.Status = defaultDealStatus
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Deals().Create(ctx, deal); err != nil {
			return fmt.Errorf("create deal: %w", err)
		}
		return tx.Activities().Create(ctx, &domain.Activity{
			ID:          uuid.NewString(),
			Type:        domain.ActivityDealCreated,
			Description: fmt.Sprintf("Deal %q created for client %q", deal.Title, client.FullName),
			Ref:         domain.EntityRef{Kind: domain.EntityDeal, ID: deal.ID},
			PerformedBy: performedBy,
			Metadata: map[string]string{
				domain.MetaClientID: client.ID,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "deal created",
		logger.Module("deal"),
		logger.Action("create"),
		zap.String("deal_id", deal.ID),
		zap.String("client_id", client.ID),
	)

	return deal, nil
}

func (s *DealService) Get(ctx context.Context, id string) (*domain.Deal, error) {
	return s.store.Deals().Get(ctx, id)
}

func (s *DealService) List(ctx context.Context, params domain.ListDealsParams) ([]domain.Deal, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 50
	}
	return s.store.Deals().List(ctx, params)
}

// Update patches a deal. A status change appends an activity in the same
// transaction: deal_completed when the new status is "completed" (which also
// stamps CompletedAt), status_changed otherwise.
func (s *DealService) Update(ctx context.Context, id string, req *domain.UpdateDealRequest, performedBy string) (*domain.Deal, error) {
	current, err := s.store.Deals().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		if err := s.validateStatus(ctx, *req.Status); err != nil {
			return nil, err
		}
	}

	patch := req.Patch()
	statusChanged := req.Status != nil && *req.Status != current.Status

	if !statusChanged {
		return s.store.Deals().Update(ctx, id, patch)
	}

	now := time.Now().UTC()
	actType := domain.ActivityStatusChanged
	description := fmt.Sprintf("Deal status changed from %s to %s", current.Status, *req.Status)
	if *req.Status == domain.DealStatusCompleted {
		actType = domain.ActivityDealCompleted
		description = fmt.Sprintf("Deal %q completed", current.Title)
		patch.CompletedAt = &now
	}

	var updated *domain.Deal
	err = s.store.InTx(ctx, func(tx Store) error {
		updated, err = tx.Deals().Update(ctx, id, patch)
		if err != nil {
			return fmt.Errorf("update deal: %w", err)
		}
		return tx.Activities().Create(ctx, &domain.Activity{
			ID:          uuid.NewString(),
			Type:        actType,
			Description: description,
			Ref:         domain.EntityRef{Kind: domain.EntityDeal, ID: id},
			PerformedBy: performedBy,
			Metadata: map[string]string{
				domain.MetaOldStatus: current.Status,
				domain.MetaNewStatus: *req.Status,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "deal status changed",
		logger.Module("deal"),
		logger.Action("update"),
		zap.String("deal_id", id),
		zap.String("old_status", current.Status),
		zap.String("new_status", *req.Status),
	)

	return updated, nil
}

// Delete removes a deal and cascades to every activity referencing it, in one
// transaction. Partial cascades cannot happen: either the deal and all its
// activities disappear together or the delete fails whole.
func (s *DealService) Delete(ctx context.Context, id string, performedBy string) error {
	if _, err := s.store.Deals().Get(ctx, id); err != nil {
		return err
	}

	var removed int64
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		removed, err = tx.Activities().DeleteByEntity(ctx, domain.EntityRef{Kind: domain.EntityDeal, ID: id})
		if err != nil {
			return fmt.Errorf("cascade deal activities: %w", err)
		}
		return tx.Deals().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "deal deleted",
		logger.Module("deal"),
		logger.Action("delete"),
		zap.String("deal_id", id),
		zap.Int64("activities_removed", removed),
	)
	return nil
}
