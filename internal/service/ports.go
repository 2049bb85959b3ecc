package service

import (
	"context"
	"errors"
	"time"

	"timberline-crm/internal/domain"
)

// Store errors surfaced by any implementation.
var (
	ErrLeadNotFound     = errors.New("lead not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrDealNotFound     = errors.New("deal not found")
	ErrActivityNotFound = errors.New("activity not found")
	ErrSettingsNotFound = errors.New("crm settings not found")
)

// Store is the persistence boundary of the CRM services. InTx runs fn against
// a Store whose writes commit as one atomic unit: either every write inside
// fn becomes visible, or none does. This is the primitive the consistency
// rules (entity mutation + activity record) are built on.
type Store interface {
	Leads() LeadStore
	Clients() ClientStore
	Deals() DealStore
	Activities() ActivityStore
	Settings() SettingsStore

	InTx(ctx context.Context, fn func(tx Store) error) error
}

// LeadStore persists leads. Get returns soft-deleted leads too (callers
// decide); List, Count and Search always exclude them.
type LeadStore interface {
	Get(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context, params domain.ListLeadsParams) (leads []domain.Lead, total int, nextCursor string, err error)
	Create(ctx context.Context, lead *domain.Lead) error
	Update(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error)
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	Search(ctx context.Context, query string, limit int) ([]domain.Lead, error)
}

type ClientStore interface {
	// Get includes the derived deal aggregates (dealCount, totalValue).
	Get(ctx context.Context, id string) (*domain.Client, error)
	List(ctx context.Context, params domain.ListClientsParams) ([]domain.Client, error)
	Create(ctx context.Context, client *domain.Client) error
	Update(ctx context.Context, id string, patch domain.ClientPatch) (*domain.Client, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]domain.Client, error)
}

type DealStore interface {
	Get(ctx context.Context, id string) (*domain.Deal, error)
	List(ctx context.Context, params domain.ListDealsParams) ([]domain.Deal, error)
	Create(ctx context.Context, deal *domain.Deal) error
	Update(ctx context.Context, id string, patch domain.DealPatch) (*domain.Deal, error)
	Delete(ctx context.Context, id string) error
	CountByClient(ctx context.Context, clientID string) (int, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Deal, error)
}

type ActivityStore interface {
	Get(ctx context.Context, id string) (*domain.Activity, error)
	Create(ctx context.Context, activity *domain.Activity) error
	List(ctx context.Context, params domain.ListActivitiesParams) ([]domain.Activity, error)
	Delete(ctx context.Context, id string) error
	// DeleteByEntity removes every activity referencing one entity and
	// returns how many were removed. Only the deal cascade calls this.
	DeleteByEntity(ctx context.Context, ref domain.EntityRef) (int64, error)
}

type SettingsStore interface {
	Get(ctx context.Context) (*domain.CrmSettings, error)
	Upsert(ctx context.Context, settings *domain.CrmSettings) error
	// CreateIfNotExists seeds the singleton without clobbering an existing
	// customized document.
	CreateIfNotExists(ctx context.Context, settings *domain.CrmSettings) error
}

// AssetStore records uploaded blob metadata.
type AssetStore interface {
	Create(ctx context.Context, asset *domain.Asset) error
}
