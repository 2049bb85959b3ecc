package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/observability/logger"
)

// SettingsService manages the singleton CRM vocabulary document. Every lead
// and deal mutation validates its status-like fields against it, so reads
// here sit on the hot path of the consistency manager.
type SettingsService struct {
	store Store
	log   *logger.Logger
}

func NewSettingsService(store Store, log *logger.Logger) *SettingsService {
	return &SettingsService{store: store, log: log}
}

// Get returns the stored settings, or the compiled defaults when no document
// exists yet. The second return reports whether a stored document was found.
func (s *SettingsService) Get(ctx context.Context) (*domain.CrmSettings, bool, error) {
	settings, err := s.store.Settings().Get(ctx)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return domain.DefaultSettings(), false, nil
		}
		return nil, false, fmt.Errorf("get settings: %w", err)
	}
	return settings, true, nil
}

// Vocabulary is Get without the stored flag, used by the validation gate.
// A store failure propagates: validation is fail-closed, so a mutation that
// cannot be checked is rejected rather than waved through.
func (s *SettingsService) Vocabulary(ctx context.Context) (*domain.CrmSettings, error) {
	settings, _, err := s.Get(ctx)
	return settings, err
}

// Update replaces the whole vocabulary document.
func (s *SettingsService) Update(ctx context.Context, req *domain.UpdateSettingsRequest) (*domain.CrmSettings, error) {
	settings := &domain.CrmSettings{
		ID:             domain.SettingsID,
		PipelineStages: req.PipelineStages,
		DealStatuses:   req.DealStatuses,
		LeadSources:    req.LeadSources,
		ServiceTypes:   req.ServiceTypes,
		UpdatedAt:      time.Now().UTC(),
	}

	if err := s.store.Settings().Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("upsert settings: %w", err)
	}

	s.log.Info(ctx, "crm settings updated",
		logger.Module("settings"),
		logger.Action("update"),
	)

	return settings, nil
}

// EnsureDefaults seeds the singleton at startup without overwriting an
// existing customized document.
func (s *SettingsService) EnsureDefaults(ctx context.Context) error {
	defaults := domain.DefaultSettings()
	defaults.UpdatedAt = time.Now().UTC()

	if err := s.store.Settings().CreateIfNotExists(ctx, defaults); err != nil {
		return fmt.Errorf("seed default settings: %w", err)
	}
	return nil
}
