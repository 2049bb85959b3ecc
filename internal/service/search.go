package service

import (
	"context"
	"fmt"
	"strings"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/observability/logger"
)

// searchPerCategory caps hits per entity kind in the global search box.
const searchPerCategory = 5

// SearchService fans a query out across leads, clients and deals.
type SearchService struct {
	store Store
	log   *logger.Logger
}

func NewSearchService(store Store, log *logger.Logger) *SearchService {
	return &SearchService{store: store, log: log}
}

// Search matches the query against names, emails, phones and deal titles.
// Soft-deleted leads never surface. An empty query returns empty results
// instead of everything.
func (s *SearchService) Search(ctx context.Context, query string) (*domain.SearchResults, error) {
	results := &domain.SearchResults{
		Leads:   []domain.Lead{},
		Clients: []domain.Client{},
		Deals:   []domain.Deal{},
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return results, nil
	}

	leads, err := s.store.Leads().Search(ctx, query, searchPerCategory)
	if err != nil {
		return nil, fmt.Errorf("search leads: %w", err)
	}
	clients, err := s.store.Clients().Search(ctx, query, searchPerCategory)
	if err != nil {
		return nil, fmt.Errorf("search clients: %w", err)
	}
	deals, err := s.store.Deals().Search(ctx, query, searchPerCategory)
	if err != nil {
		return nil, fmt.Errorf("search deals: %w", err)
	}

	if leads != nil {
		results.Leads = leads
	}
	if clients != nil {
		results.Clients = clients
	}
	if deals != nil {
		results.Deals = deals
	}
	return results, nil
}
