package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"timberline-crm/internal/service"
)

// dbtx is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the same
// repository code runs inside and outside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store aggregates the per-entity repositories over one pgx pool and
// implements the service persistence boundary, including InTx.
type Store struct {
	pool *pgxpool.Pool
	db   dbtx

	leads      *LeadRepository
	clients    *ClientRepository
	deals      *DealRepository
	activities *ActivityRepository
	settings   *SettingsRepository
	assets     *AssetRepository
}

func NewStore(pool *pgxpool.Pool) *Store {
	return newStore(pool, pool)
}

func newStore(pool *pgxpool.Pool, db dbtx) *Store {
	return &Store{
		pool:       pool,
		db:         db,
		leads:      &LeadRepository{db: db},
		clients:    &ClientRepository{db: db},
		deals:      &DealRepository{db: db},
		activities: &ActivityRepository{db: db},
		settings:   &SettingsRepository{db: db},
		assets:     &AssetRepository{db: db},
	}
}

func (s *Store) Leads() service.LeadStore          { return s.leads }
func (s *Store) Clients() service.ClientStore      { return s.clients }
func (s *Store) Deals() service.DealStore          { return s.deals }
func (s *Store) Activities() service.ActivityStore { return s.activities }
func (s *Store) Settings() service.SettingsStore   { return s.settings }
func (s *Store) Assets() service.AssetStore        { return s.assets }

// InTx runs fn against a transaction-bound Store. A nested call joins the
// ambient transaction instead of opening a second one.
func (s *Store) InTx(ctx context.Context, fn func(tx service.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newStore(nil, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
