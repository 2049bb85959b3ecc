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

// ClientRepository persists clients. Reads join the deal aggregates
// (deal count, total value) so the dashboard never stores derived numbers.
type ClientRepository struct {
	db dbtx
}

const clientSelect = `
	SELECT c.id, c.full_name, c.email, c.phone, c.address, c.status, c.client_since,
	       c.source_lead_id, c.created_at, c.updated_at,
	       count(d.id), COALESCE(sum(d.value), 0)
	FROM clients c
	LEFT JOIN deals d ON d.client_id = c.id`

const clientGroup = ` GROUP BY c.id`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(
		&c.ID, &c.FullName, &c.Email, &c.Phone, &c.Address, &c.Status, &c.ClientSince,
		&c.SourceLeadID, &c.CreatedAt, &c.UpdatedAt,
		&c.DealCount, &c.TotalValue,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClientRepository) Get(ctx context.Context, id string) (*domain.Client, error) {
	row := r.db.QueryRow(ctx, clientSelect+` WHERE c.id = $1`+clientGroup, id)
	client, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO clients (
			id, full_name, email, phone, address, status, client_since,
			source_lead_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		client.ID, client.FullName, client.Email, client.Phone, client.Address,
		client.Status, client.ClientSince, client.SourceLeadID,
		client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (r *ClientRepository) List(ctx context.Context, params domain.ListClientsParams) ([]domain.Client, error) {
	where := ""
	args := []any{}
	arg := 1

	if params.Status != nil {
		where = fmt.Sprintf(" WHERE c.status = $%d", arg)
		args = append(args, *params.Status)
		arg++
	}

	query := fmt.Sprintf("%s%s%s ORDER BY c.created_at DESC LIMIT $%d",
		clientSelect, where, clientGroup, arg)
	args = append(args, params.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []domain.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *client)
	}
	return clients, rows.Err()
}

func (r *ClientRepository) Update(ctx context.Context, id string, patch domain.ClientPatch) (*domain.Client, error) {
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
	if patch.Address != nil {
		set.add("address", *patch.Address)
	}
	if patch.Status != nil {
		set.add("status", *patch.Status)
	}

	if set.empty() {
		return r.Get(ctx, id)
	}
	set.add("updated_at", time.Now().UTC())

	query := fmt.Sprintf(`UPDATE clients SET %s WHERE id = $1 RETURNING id`, set.sql())
	args := append([]any{id}, set.args...)

	var updatedID string
	if err := r.db.QueryRow(ctx, query, args...).Scan(&updatedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrClientNotFound
		}
		return nil, fmt.Errorf("update client: %w", err)
	}

	// Re-read through the aggregate join so the response carries fresh
	// derived fields.
	return r.Get(ctx, updatedID)
}

func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrClientNotFound
	}
	return nil
}

func (r *ClientRepository) Search(ctx context.Context, query string, limit int) ([]domain.Client, error) {
	pattern := ilikePattern(query)
	rows, err := r.db.Query(ctx, clientSelect+`
		WHERE c.full_name ILIKE $1 OR c.email ILIKE $1 OR c.phone ILIKE $1`+clientGroup+`
		ORDER BY c.created_at DESC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	defer rows.Close()

	clients := []domain.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *client)
	}
	return clients, rows.Err()
}
