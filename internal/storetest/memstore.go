// Package storetest provides an in-memory service.Store with transactional
// snapshot semantics and failure injection, for exercising the services'
// consistency rules without Postgres.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/service"
)

// MemStore implements service.Store over maps. InTx snapshots all state up
// front and restores it when fn fails, mirroring a rolled-back transaction.
type MemStore struct {
	mu sync.Mutex

	leads      map[string]domain.Lead
	clients    map[string]domain.Client
	deals      map[string]domain.Deal
	activities map[string]domain.Activity
	settings   *domain.CrmSettings
	assets     map[string]domain.Asset

	// failures maps operation names ("activities.create", "leads.update",
	// "settings.get", ...) to the error the next matching call returns.
	failures map[string]error
}

func New() *MemStore {
	return &MemStore{
		leads:      map[string]domain.Lead{},
		clients:    map[string]domain.Client{},
		deals:      map[string]domain.Deal{},
		activities: map[string]domain.Activity{},
		assets:     map[string]domain.Asset{},
		failures:   map[string]error{},
	}
}

// FailOn makes every subsequent call of the named operation return err.
func (m *MemStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

func (m *MemStore) failure(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[op]
}

func (m *MemStore) Leads() service.LeadStore          { return &leadStore{m} }
func (m *MemStore) Clients() service.ClientStore      { return &clientStore{m} }
func (m *MemStore) Deals() service.DealStore          { return &dealStore{m} }
func (m *MemStore) Activities() service.ActivityStore { return &activityStore{m} }
func (m *MemStore) Settings() service.SettingsStore   { return &settingsStore{m} }
func (m *MemStore) Assets() service.AssetStore        { return &assetStore{m} }

func (m *MemStore) InTx(ctx context.Context, fn func(tx service.Store) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	leads      map[string]domain.Lead
	clients    map[string]domain.Client
	deals      map[string]domain.Deal
	activities map[string]domain.Activity
	settings   *domain.CrmSettings
}

func (m *MemStore) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := snapshot{
		leads:      make(map[string]domain.Lead, len(m.leads)),
		clients:    make(map[string]domain.Client, len(m.clients)),
		deals:      make(map[string]domain.Deal, len(m.deals)),
		activities: make(map[string]domain.Activity, len(m.activities)),
	}
	for k, v := range m.leads {
		s.leads[k] = v
	}
	for k, v := range m.clients {
		s.clients[k] = v
	}
	for k, v := range m.deals {
		s.deals[k] = v
	}
	for k, v := range m.activities {
		s.activities[k] = v
	}
	if m.settings != nil {
		cp := *m.settings
		s.settings = &cp
	}
	return s
}

func (m *MemStore) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = s.leads
	m.clients = s.clients
	m.deals = s.deals
	m.activities = s.activities
	m.settings = s.settings
}

// ActivitiesFor returns the stored activities referencing one entity, oldest
// first. Test helper.
func (m *MemStore) ActivitiesFor(kind domain.EntityKind, id string) []domain.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Activity{}
	for _, a := range m.activities {
		if a.Ref.Kind == kind && a.Ref.ID == id {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ActivityCount reports the total number of stored activities. Test helper.
func (m *MemStore) ActivityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activities)
}

// leadStore

type leadStore struct{ m *MemStore }

func (s *leadStore) Get(ctx context.Context, id string) (*domain.Lead, error) {
	if err := s.m.failure("leads.get"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	lead, ok := s.m.leads[id]
	if !ok {
		return nil, service.ErrLeadNotFound
	}
	return &lead, nil
}

func (s *leadStore) Create(ctx context.Context, lead *domain.Lead) error {
	if err := s.m.failure("leads.create"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.leads[lead.ID] = *lead
	return nil
}

func (s *leadStore) List(ctx context.Context, params domain.ListLeadsParams) ([]domain.Lead, int, string, error) {
	if err := s.m.failure("leads.list"); err != nil {
		return nil, 0, "", err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	all := []domain.Lead{}
	for _, l := range s.m.leads {
		if l.Deleted {
			continue
		}
		if params.Status != nil && l.Status != *params.Status {
			continue
		}
		all = append(all, l)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if params.Cursor != nil {
		cursor, err := time.Parse(time.RFC3339Nano, *params.Cursor)
		if err != nil {
			return nil, 0, "", err
		}
		filtered := []domain.Lead{}
		for _, l := range all {
			if l.CreatedAt.Before(cursor) {
				filtered = append(filtered, l)
			}
		}
		all = filtered
	}

	nextCursor := ""
	if params.Limit > 0 && len(all) > params.Limit {
		all = all[:params.Limit]
		nextCursor = all[len(all)-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return all, total, nextCursor, nil
}

func (s *leadStore) Update(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error) {
	if err := s.m.failure("leads.update"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	lead, ok := s.m.leads[id]
	if !ok {
		return nil, service.ErrLeadNotFound
	}
	if patch.FullName != nil {
		lead.FullName = *patch.FullName
	}
	if patch.Email != nil {
		lead.Email = *patch.Email
	}
	if patch.Phone != nil {
		lead.Phone = *patch.Phone
	}
	if patch.Source != nil {
		lead.Source = *patch.Source
	}
	if patch.ServiceType != nil {
		lead.ServiceType = *patch.ServiceType
	}
	if patch.Message != nil {
		lead.Message = *patch.Message
	}
	if patch.Status != nil {
		lead.Status = *patch.Status
	}
	if patch.Priority != nil {
		lead.Priority = *patch.Priority
	}
	if patch.EstimatedValue != nil {
		lead.EstimatedValue = patch.EstimatedValue
	}
	if patch.ConvertedToClientID != nil {
		lead.ConvertedToClientID = patch.ConvertedToClientID
	}
	lead.UpdatedAt = time.Now().UTC()
	s.m.leads[id] = lead
	return &lead, nil
}

func (s *leadStore) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	if err := s.m.failure("leads.markDeleted"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	lead, ok := s.m.leads[id]
	if !ok || lead.Deleted {
		return service.ErrLeadNotFound
	}
	lead.Deleted = true
	lead.DeletedAt = &at
	lead.UpdatedAt = at
	s.m.leads[id] = lead
	return nil
}

func (s *leadStore) Search(ctx context.Context, query string, limit int) ([]domain.Lead, error) {
	if err := s.m.failure("leads.search"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	q := strings.ToLower(query)
	out := []domain.Lead{}
	for _, l := range s.m.leads {
		if l.Deleted {
			continue
		}
		if containsFold(q, l.FullName, l.Email, l.Phone) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// clientStore

type clientStore struct{ m *MemStore }

func (s *clientStore) Get(ctx context.Context, id string) (*domain.Client, error) {
	if err := s.m.failure("clients.get"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	client, ok := s.m.clients[id]
	if !ok {
		return nil, service.ErrClientNotFound
	}
	s.aggregateLocked(&client)
	return &client, nil
}

func (s *clientStore) aggregateLocked(client *domain.Client) {
	client.DealCount = 0
	client.TotalValue = 0
	for _, d := range s.m.deals {
		if d.ClientID == client.ID {
			client.DealCount++
			if d.Value != nil {
				client.TotalValue += *d.Value
			}
		}
	}
}

func (s *clientStore) Create(ctx context.Context, client *domain.Client) error {
	if err := s.m.failure("clients.create"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.clients[client.ID] = *client
	return nil
}

func (s *clientStore) List(ctx context.Context, params domain.ListClientsParams) ([]domain.Client, error) {
	if err := s.m.failure("clients.list"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	out := []domain.Client{}
	for _, c := range s.m.clients {
		if params.Status != nil && c.Status != *params.Status {
			continue
		}
		s.aggregateLocked(&c)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *clientStore) Update(ctx context.Context, id string, patch domain.ClientPatch) (*domain.Client, error) {
	if err := s.m.failure("clients.update"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	client, ok := s.m.clients[id]
	if !ok {
		return nil, service.ErrClientNotFound
	}
	if patch.FullName != nil {
		client.FullName = *patch.FullName
	}
	if patch.Email != nil {
		client.Email = *patch.Email
	}
	if patch.Phone != nil {
		client.Phone = *patch.Phone
	}
	if patch.Address != nil {
		client.Address = *patch.Address
	}
	if patch.Status != nil {
		client.Status = *patch.Status
	}
	client.UpdatedAt = time.Now().UTC()
	s.m.clients[id] = client
	s.aggregateLocked(&client)
	return &client, nil
}

func (s *clientStore) Delete(ctx context.Context, id string) error {
	if err := s.m.failure("clients.delete"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.clients[id]; !ok {
		return service.ErrClientNotFound
	}
	delete(s.m.clients, id)
	return nil
}

func (s *clientStore) Search(ctx context.Context, query string, limit int) ([]domain.Client, error) {
	if err := s.m.failure("clients.search"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	q := strings.ToLower(query)
	out := []domain.Client{}
	for _, c := range s.m.clients {
		if containsFold(q, c.FullName, c.Email, c.Phone) {
			s.aggregateLocked(&c)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// dealStore

type dealStore struct{ m *MemStore }

func (s *dealStore) Get(ctx context.Context, id string) (*domain.Deal, error) {
	if err := s.m.failure("deals.get"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	deal, ok := s.m.deals[id]
	if !ok {
		return nil, service.ErrDealNotFound
	}
	return &deal, nil
}

func (s *dealStore) Create(ctx context.Context, deal *domain.Deal) error {
	if err := s.m.failure("deals.create"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.deals[deal.ID] = *deal
	return nil
}

func (s *dealStore) List(ctx context.Context, params domain.ListDealsParams) ([]domain.Deal, error) {
	if err := s.m.failure("deals.list"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	out := []domain.Deal{}
	for _, d := range s.m.deals {
		if params.ClientID != nil && d.ClientID != *params.ClientID {
			continue
		}
		if params.Status != nil && d.Status != *params.Status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *dealStore) Update(ctx context.Context, id string, patch domain.DealPatch) (*domain.Deal, error) {
	if err := s.m.failure("deals.update"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	deal, ok := s.m.deals[id]
	if !ok {
		return nil, service.ErrDealNotFound
	}
	if patch.Title != nil {
		deal.Title = *patch.Title
	}
	if patch.DealType != nil {
		deal.DealType = *patch.DealType
	}
	if patch.Status != nil {
		deal.Status = *patch.Status
	}
	if patch.Value != nil {
		deal.Value = patch.Value
	}
	if patch.Scope != nil {
		deal.Scope = *patch.Scope
	}
	if patch.StartDate != nil {
		deal.StartDate = patch.StartDate
	}
	if patch.TargetDate != nil {
		deal.TargetDate = patch.TargetDate
	}
	if patch.CompletedAt != nil {
		deal.CompletedAt = patch.CompletedAt
	}
	deal.UpdatedAt = time.Now().UTC()
	s.m.deals[id] = deal
	return &deal, nil
}

func (s *dealStore) Delete(ctx context.Context, id string) error {
	if err := s.m.failure("deals.delete"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.deals[id]; !ok {
		return service.ErrDealNotFound
	}
	delete(s.m.deals, id)
	return nil
}

func (s *dealStore) CountByClient(ctx context.Context, clientID string) (int, error) {
	if err := s.m.failure("deals.countByClient"); err != nil {
		return 0, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	count := 0
	for _, d := range s.m.deals {
		if d.ClientID == clientID {
			count++
		}
	}
	return count, nil
}

func (s *dealStore) Search(ctx context.Context, query string, limit int) ([]domain.Deal, error) {
	if err := s.m.failure("deals.search"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	q := strings.ToLower(query)
	out := []domain.Deal{}
	for _, d := range s.m.deals {
		if containsFold(q, d.Title, d.DealType) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// activityStore

type activityStore struct{ m *MemStore }

func (s *activityStore) Get(ctx context.Context, id string) (*domain.Activity, error) {
	if err := s.m.failure("activities.get"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	activity, ok := s.m.activities[id]
	if !ok {
		return nil, service.ErrActivityNotFound
	}
	return &activity, nil
}

func (s *activityStore) Create(ctx context.Context, activity *domain.Activity) error {
	if err := s.m.failure("activities.create"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.activities[activity.ID] = *activity
	return nil
}

func (s *activityStore) List(ctx context.Context, params domain.ListActivitiesParams) ([]domain.Activity, error) {
	if err := s.m.failure("activities.list"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	out := []domain.Activity{}
	for _, a := range s.m.activities {
		if params.Kind != nil && params.EntityID != nil {
			if a.Ref.Kind != *params.Kind || a.Ref.ID != *params.EntityID {
				continue
			}
		}
		if params.Type != nil && a.Type != *params.Type {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *activityStore) Delete(ctx context.Context, id string) error {
	if err := s.m.failure("activities.delete"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if _, ok := s.m.activities[id]; !ok {
		return service.ErrActivityNotFound
	}
	delete(s.m.activities, id)
	return nil
}

func (s *activityStore) DeleteByEntity(ctx context.Context, ref domain.EntityRef) (int64, error) {
	if err := s.m.failure("activities.deleteByEntity"); err != nil {
		return 0, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var removed int64
	for id, a := range s.m.activities {
		if a.Ref == ref {
			delete(s.m.activities, id)
			removed++
		}
	}
	return removed, nil
}

// settingsStore

type settingsStore struct{ m *MemStore }

func (s *settingsStore) Get(ctx context.Context) (*domain.CrmSettings, error) {
	if err := s.m.failure("settings.get"); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if s.m.settings == nil {
		return nil, service.ErrSettingsNotFound
	}
	cp := *s.m.settings
	return &cp, nil
}

func (s *settingsStore) Upsert(ctx context.Context, settings *domain.CrmSettings) error {
	if err := s.m.failure("settings.upsert"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	cp := *settings
	s.m.settings = &cp
	return nil
}

func (s *settingsStore) CreateIfNotExists(ctx context.Context, settings *domain.CrmSettings) error {
	if err := s.m.failure("settings.createIfNotExists"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if s.m.settings == nil {
		cp := *settings
		s.m.settings = &cp
	}
	return nil
}

// assetStore

type assetStore struct{ m *MemStore }

func (s *assetStore) Create(ctx context.Context, asset *domain.Asset) error {
	if err := s.m.failure("assets.create"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.assets[asset.ID] = *asset
	return nil
}

func containsFold(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
