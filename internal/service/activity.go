package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/observability/logger"
)

// ActivityService reads the audit ledger and accepts manually-logged entries
// (notes). Workflow activity types are produced inside the entity services'
// transactions, never through here.
type ActivityService struct {
	store Store
	log   *logger.Logger
}

func NewActivityService(store Store, log *logger.Logger) *ActivityService {
	return &ActivityService{store: store, log: log}
}

// Create logs a manual activity. The referenced entity must exist; a deleted
// lead still counts, since its history remains addressable.
func (s *ActivityService) Create(ctx context.Context, req *domain.CreateActivityRequest, performedBy string) (*domain.Activity, error) {
	ref := domain.EntityRef{Kind: req.EntityKind, ID: req.EntityID}
	if err := s.checkRef(ctx, ref); err != nil {
		return nil, err
	}

	activity := &domain.Activity{
		ID:          uuid.NewString(),
		Type:        req.Type,
		Description: req.Description,
		Ref:         ref,
		PerformedBy: performedBy,
		Metadata:    req.Metadata,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.Activities().Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}

	s.log.Info(ctx, "activity logged",
		logger.Module("activity"),
		logger.Action("create"),
	)

	return activity, nil
}

func (s *ActivityService) checkRef(ctx context.Context, ref domain.EntityRef) error {
	switch ref.Kind {
	case domain.EntityLead:
		_, err := s.store.Leads().Get(ctx, ref.ID)
		return err
	case domain.EntityClient:
		_, err := s.store.Clients().Get(ctx, ref.ID)
		return err
	case domain.EntityDeal:
		_, err := s.store.Deals().Get(ctx, ref.ID)
		return err
	}
	return &domain.VocabularyError{Field: "entityKind", Value: string(ref.Kind)}
}

func (s *ActivityService) Get(ctx context.Context, id string) (*domain.Activity, error) {
	return s.store.Activities().Get(ctx, id)
}

func (s *ActivityService) List(ctx context.Context, params domain.ListActivitiesParams) ([]domain.Activity, error) {
	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}
	if params.Kind != nil && !params.Kind.IsValid() {
		return nil, &domain.VocabularyError{Field: "entityKind", Value: string(*params.Kind)}
	}
	if params.Type != nil && !params.Type.IsValid() {
		return nil, &domain.VocabularyError{Field: "type", Value: string(*params.Type)}
	}
	return s.store.Activities().List(ctx, params)
}

// Delete removes one activity record. The admin UI exposes this for cleaning
// up mis-logged notes; workflow records are normally left alone.
func (s *ActivityService) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Activities().Get(ctx, id); err != nil {
		return err
	}
	return s.store.Activities().Delete(ctx, id)
}
