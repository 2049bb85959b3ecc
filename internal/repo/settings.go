package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/service"
)

// SettingsRepository persists the singleton vocabulary row. Stage lists go
// through JSONB, the flat vocabularies through text arrays.
type SettingsRepository struct {
	db dbtx
}

func (r *SettingsRepository) Get(ctx context.Context) (*domain.CrmSettings, error) {
	var s domain.CrmSettings
	var pipelineStages, dealStatuses []byte

	err := r.db.QueryRow(ctx, `
		SELECT id, pipeline_stages, deal_statuses, lead_sources, service_types, updated_at
		FROM crm_settings WHERE id = $1`, domain.SettingsID,
	).Scan(&s.ID, &pipelineStages, &dealStatuses, &s.LeadSources, &s.ServiceTypes, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}

	if err := json.Unmarshal(pipelineStages, &s.PipelineStages); err != nil {
		return nil, fmt.Errorf("unmarshal pipeline stages: %w", err)
	}
	if err := json.Unmarshal(dealStatuses, &s.DealStatuses); err != nil {
		return nil, fmt.Errorf("unmarshal deal statuses: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, settings *domain.CrmSettings) error {
	pipelineStages, dealStatuses, err := marshalStages(settings)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO crm_settings (id, pipeline_stages, deal_statuses, lead_sources, service_types, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			pipeline_stages = EXCLUDED.pipeline_stages,
			deal_statuses = EXCLUDED.deal_statuses,
			lead_sources = EXCLUDED.lead_sources,
			service_types = EXCLUDED.service_types,
			updated_at = EXCLUDED.updated_at`,
		settings.ID, pipelineStages, dealStatuses,
		settings.LeadSources, settings.ServiceTypes, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func (r *SettingsRepository) CreateIfNotExists(ctx context.Context, settings *domain.CrmSettings) error {
	pipelineStages, dealStatuses, err := marshalStages(settings)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO crm_settings (id, pipeline_stages, deal_statuses, lead_sources, service_types, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		settings.ID, pipelineStages, dealStatuses,
		settings.LeadSources, settings.ServiceTypes, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

func marshalStages(settings *domain.CrmSettings) ([]byte, []byte, error) {
	pipelineStages, err := json.Marshal(settings.PipelineStages)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal pipeline stages: %w", err)
	}
	dealStatuses, err := json.Marshal(settings.DealStatuses)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal deal statuses: %w", err)
	}
	return pipelineStages, dealStatuses, nil
}
