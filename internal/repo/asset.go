package repo

import (
	"context"
	"fmt"

	"timberline-crm/internal/domain"
)

type AssetRepository struct {
	db dbtx
}

func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO assets (id, kind, filename, content_type, size_bytes, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		asset.ID, asset.Kind, asset.Filename, asset.ContentType,
		asset.SizeBytes, asset.URL, asset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}
