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

// ActivityRepository persists the append-only audit ledger. Metadata travels
// as JSONB; rows are never updated.
type ActivityRepository struct {
	db dbtx
}

const activityColumns = `id, type, description, entity_kind, entity_id, performed_by, metadata, created_at`

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var a domain.Activity
	var metadata []byte
	err := row.Scan(
		&a.ID, &a.Type, &a.Description, &a.Ref.Kind, &a.Ref.ID,
		&a.PerformedBy, &metadata, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal activity metadata: %w", err)
		}
	}
	return &a, nil
}

func (r *ActivityRepository) Get(ctx context.Context, id string) (*domain.Activity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrActivityNotFound
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return activity, nil
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	var metadata []byte
	if activity.Metadata != nil {
		var err error
		metadata, err = json.Marshal(activity.Metadata)
		if err != nil {
			return fmt.Errorf("marshal activity metadata: %w", err)
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO activities (
			id, type, description, entity_kind, entity_id, performed_by, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		activity.ID, activity.Type, activity.Description,
		activity.Ref.Kind, activity.Ref.ID, activity.PerformedBy,
		metadata, activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) List(ctx context.Context, params domain.ListActivitiesParams) ([]domain.Activity, error) {
	where := "TRUE"
	args := []any{}
	arg := 1

	if params.Kind != nil && params.EntityID != nil {
		where += fmt.Sprintf(" AND entity_kind = $%d AND entity_id = $%d", arg, arg+1)
		args = append(args, *params.Kind, *params.EntityID)
		arg += 2
	}
	if params.Type != nil {
		where += fmt.Sprintf(" AND type = $%d", arg)
		args = append(args, *params.Type)
		arg++
	}

	query := fmt.Sprintf(`SELECT %s FROM activities WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		activityColumns, where, arg)
	args = append(args, params.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	activities := []domain.Activity{}
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *activity)
	}
	return activities, rows.Err()
}

func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrActivityNotFound
	}
	return nil
}

func (r *ActivityRepository) DeleteByEntity(ctx context.Context, ref domain.EntityRef) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM activities WHERE entity_kind = $1 AND entity_id = $2`,
		ref.Kind, ref.ID)
	if err != nil {
		return 0, fmt.Errorf("delete activities by entity: %w", err)
	}
	return tag.RowsAffected(), nil
}
