package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/service"
	"timberline-crm/internal/storetest"
)

// TestContractorWorkflow walks the whole funnel: a website inquiry becomes a
// lead, gets worked through the pipeline, converts to a client, gains a deal,
// and the deal completes. At the end the activity ledger must tell the full
// story in order.
func TestContractorWorkflow(t *testing.T) {
	store := storetest.New()
	log := testLogger(t)
	settings := service.NewSettingsService(store, log)
	leads := service.NewLeadService(store, settings, log)
	clients := service.NewClientService(store, log)
	deals := service.NewDealService(store, settings, log)
	ctx := context.Background()

	// Website form submission, unattended.
	lead, err := leads.Create(ctx, &domain.CreateLeadRequest{
		FullName:    "Priya Raman",
		Email:       "priya@example.com",
		Source:      "website",
		ServiceType: "kitchen_remodel",
		Message:     "Looking to redo our kitchen this fall.",
	}, domain.LeadOriginAutoWebsiteForm, domain.SystemActor)
	require.NoError(t, err)

	// Admin works the lead through the pipeline.
	for _, stage := range []string{"contacted", "site_visit", "quoted"} {
		st := stage
		_, err = leads.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &st}, "sam@timberline.test")
		require.NoError(t, err)
	}

	// Quote accepted: convert.
	client, err := clients.Create(ctx, &domain.CreateClientRequest{
		FullName:     "Priya Raman",
		Email:        "priya@example.com",
		Address:      "88 Alder Ct",
		SourceLeadID: &lead.ID,
	}, "sam@timberline.test")
	require.NoError(t, err)

	// Contract signed, project runs to completion.
	value := 46000.0
	deal, err := deals.Create(ctx, &domain.CreateDealRequest{
		ClientID: client.ID,
		Title:    "Raman kitchen remodel",
		DealType: "kitchen_remodel",
		Value:    &value,
		Scope:    []string{"demo", "cabinets", "counters", "electrical"},
	}, "sam@timberline.test")
	require.NoError(t, err)

	for _, status := range []string{"in_progress", "completed"} {
		st := status
		_, err = deals.Update(ctx, deal.ID, &domain.UpdateDealRequest{Status: &st}, "sam@timberline.test")
		require.NoError(t, err)
	}

	// Lead ledger: auto creation, three stage moves, conversion.
	leadActs := store.ActivitiesFor(domain.EntityLead, lead.ID)
	require.Len(t, leadActs, 5)
	assert.Equal(t, domain.ActivityLeadCreatedAuto, leadActs[0].Type)
	assert.Equal(t, domain.SystemActor, leadActs[0].PerformedBy)
	assert.Equal(t, domain.ActivityLeadConverted, leadActs[4].Type)
	assert.Equal(t, client.ID, leadActs[4].Metadata[domain.MetaClientID])

	// The lead landed on "won" with the back-reference set.
	finalLead, err := store.Leads().Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "won", finalLead.Status)
	require.NotNil(t, finalLead.ConvertedToClientID)

	// Deal ledger: created, one stage move, completed.
	dealActs := store.ActivitiesFor(domain.EntityDeal, deal.ID)
	require.Len(t, dealActs, 3)
	assert.Equal(t, domain.ActivityDealCreated, dealActs[0].Type)
	assert.Equal(t, domain.ActivityDealCompleted, dealActs[2].Type)

	finalDeal, err := deals.Get(ctx, deal.ID)
	require.NoError(t, err)
	require.NotNil(t, finalDeal.CompletedAt)

	// Client aggregates reflect the finished project.
	finalClient, err := clients.Get(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, finalClient.DealCount)
	assert.InDelta(t, 46000.0, finalClient.TotalValue, 0.001)
}
