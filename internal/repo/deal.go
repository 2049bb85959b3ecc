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

type DealRepository struct {
	db dbtx
}

const dealColumns = `id, client_id, title, deal_type, status, value, scope,
	start_date, target_date, completed_at, created_at, updated_at`

func scanDeal(row pgx.Row) (*domain.Deal, error) {
	var d domain.Deal
	err := row.Scan(
		&d.ID, &d.ClientID, &d.Title, &d.DealType, &d.Status, &d.Value, &d.Scope,
		&d.StartDate, &d.TargetDate, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DealRepository) Get(ctx context.Context, id string) (*domain.Deal, error) {
	row := r.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	deal, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrDealNotFound
		}
		return nil, fmt.Errorf("get deal: %w", err)
	}
	return deal, nil
}

func (r *DealRepository) Create(ctx context.Context, deal *domain.Deal) error {
	scope := deal.Scope
	if scope == nil {
		scope = []string{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO deals (
			id, client_id, title, deal_type, status, value, scope,
			start_date, target_date, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		deal.ID, deal.ClientID, deal.Title, deal.DealType, deal.Status, deal.Value,
		scope, deal.StartDate, deal.TargetDate, deal.CompletedAt,
		deal.CreatedAt, deal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

func (r *DealRepository) List(ctx context.Context, params domain.ListDealsParams) ([]domain.Deal, error) {
	where := "TRUE"
	args := []any{}
	arg := 1

	if params.ClientID != nil {
		where += fmt.Sprintf(" AND client_id = $%d", arg)
		args = append(args, *params.ClientID)
		arg++
	}
	if params.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", arg)
		args = append(args, *params.Status)
		arg++
	}

	query := fmt.Sprintf(`SELECT %s FROM deals WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		dealColumns, where, arg)
	args = append(args, params.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	deals := []domain.Deal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, *deal)
	}
	return deals, rows.Err()
}

func (r *DealRepository) Update(ctx context.Context, id string, patch domain.DealPatch) (*domain.Deal, error) {
	set := newSetClause(2)
	if patch.Title != nil {
		set.add("title", *patch.Title)
	}
	if patch.DealType != nil {
		set.add("deal_type", *patch.DealType)
	}
	if patch.Status != nil {
		set.add("status", *patch.Status)
	}
	if patch.Value != nil {
		set.add("value", *patch.Value)
	}
	if patch.Scope != nil {
		set.add("scope", *patch.Scope)
	}
	if patch.StartDate != nil {
		set.add("start_date", *patch.StartDate)
	}
	if patch.TargetDate != nil {
		set.add("target_date", *patch.TargetDate)
	}
	if patch.CompletedAt != nil {
		set.add("completed_at", *patch.CompletedAt)
	}

	if set.empty() {
		return r.Get(ctx, id)
	}
	set.add("updated_at", time.Now().UTC())

	query := fmt.Sprintf(`UPDATE deals SET %s WHERE id = $1 RETURNING %s`, set.sql(), dealColumns)
	args := append([]any{id}, set.args...)

	deal, err := scanDeal(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrDealNotFound
		}
		return nil, fmt.Errorf("update deal: %w", err)
	}
	return deal, nil
}

func (r *DealRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM deals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrDealNotFound
	}
	return nil
}

func (r *DealRepository) CountByClient(ctx context.Context, clientID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM deals WHERE client_id = $1`, clientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count deals: %w", err)
	}
	return count, nil
}

func (r *DealRepository) Search(ctx context.Context, query string, limit int) ([]domain.Deal, error) {
	pattern := ilikePattern(query)
	rows, err := r.db.Query(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE title ILIKE $1 OR deal_type ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search deals: %w", err)
	}
	defer rows.Close()

	deals := []domain.Deal{}
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, *deal)
	}
	return deals, rows.Err()
}
