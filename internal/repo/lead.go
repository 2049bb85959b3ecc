package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/service"
)

// LeadRepository persists leads. Get returns soft-deleted rows so the service
// can distinguish "gone" from "never existed"; every listing and search query
// filters them out.
type LeadRepository struct {
	db dbtx
}

const leadColumns = `id, full_name, email, phone, origin, source, service_type, message,
	priority, status, estimated_value, deleted, deleted_at, converted_to_client_id,
	created_at, updated_at`

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(
		&l.ID, &l.FullName, &l.Email, &l.Phone, &l.Origin, &l.Source, &l.ServiceType,
		&l.Message, &l.Priority, &l.Status, &l.EstimatedValue, &l.Deleted, &l.DeletedAt,
		&l.ConvertedToClientID, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepository) Get(ctx context.Context, id string) (*domain.Lead, error) {
	row := r.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrLeadNotFound
		}
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO leads (
			id, full_name, email, phone, origin, source, service_type, message,
			priority, status, estimated_value, deleted, deleted_at,
			converted_to_client_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		lead.ID, lead.FullName, lead.Email, lead.Phone, lead.Origin, lead.Source,
		lead.ServiceType, lead.Message, lead.Priority, lead.Status, lead.EstimatedValue,
		lead.Deleted, lead.DeletedAt, lead.ConvertedToClientID, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// List pages live leads newest-first using a created_at cursor. total counts
// every live lead matching the filter, not just the current page.
func (r *LeadRepository) List(ctx context.Context, params domain.ListLeadsParams) ([]domain.Lead, int, string, error) {
	where := "NOT deleted"
	args := []any{}
	arg := 1

	if params.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", arg)
		args = append(args, *params.Status)
		arg++
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM leads WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, "", fmt.Errorf("count leads: %w", err)
	}

	if params.Cursor != nil {
		cursor, err := time.Parse(time.RFC3339Nano, *params.Cursor)
		if err != nil {
			return nil, 0, "", fmt.Errorf("parse cursor: %w", err)
		}
		where += fmt.Sprintf(" AND created_at < $%d", arg)
		args = append(args, cursor)
		arg++
	}

	// Fetch one extra row to learn whether a next page exists.
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		leadColumns, where, arg)
	args = append(args, params.Limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, "", fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := []domain.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, "", fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, "", err
	}

	nextCursor := ""
	if len(leads) > params.Limit {
		leads = leads[:params.Limit]
		nextCursor = leads[len(leads)-1].CreatedAt.Format(time.RFC3339Nano)
	}

	return leads, total, nextCursor, nil
}

func (r *LeadRepository) Update(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error) {
	set := newSetClause(2)
	if patch.FullName != nil {
		set.add("full_name", *patch.FullName)
	}
	if patch.Email != nil {
		set.add("email", *patch.Email)
	}
	if patch.Phone != nil {
		set.add("phone", *patch.Phone)
	}
	if patch.Source != nil {
		set.add("source", *patch.Source)
	}
	if patch.ServiceType != nil {
		set.add("service_type", *patch.ServiceType)
	}
	if patch.Message != nil {
		set.add("message", *patch.Message)
	}
	if patch.Status != nil {
		set.add("status", *patch.Status)
	}
	if patch.Priority != nil {
		set.add("priority", *patch.Priority)
	}
	if patch.EstimatedValue != nil {
		set.add("estimated_value", *patch.EstimatedValue)
	}
	if patch.ConvertedToClientID != nil {
		set.add("converted_to_client_id", *patch.ConvertedToClientID)
	}

	if set.empty() {
		return r.Get(ctx, id)
	}
	set.add("updated_at", time.Now().UTC())

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $1 RETURNING %s`, set.sql(), leadColumns)
	args := append([]any{id}, set.args...)

	lead, err := scanLead(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrLeadNotFound
		}
		return nil, fmt.Errorf("update lead: %w", err)
	}
	return lead, nil
}

func (r *LeadRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET deleted = TRUE, deleted_at = $2, updated_at = $2
		WHERE id = $1 AND NOT deleted`, id, at)
	if err != nil {
		return fmt.Errorf("mark lead deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrLeadNotFound
	}
	return nil
}

func (r *LeadRepository) Search(ctx context.Context, query string, limit int) ([]domain.Lead, error) {
	pattern := ilikePattern(query)
	rows, err := r.db.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE NOT deleted
		  AND (full_name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1)
		ORDER BY created_at DESC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search leads: %w", err)
	}
	defer rows.Close()

	leads := []domain.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}
