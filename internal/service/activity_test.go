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

func newActivityFixture(t *testing.T) (*service.ActivityService, *service.LeadService, *storetest.MemStore) {
	t.Helper()
	store := storetest.New()
	log := testLogger(t)
	settings := service.NewSettingsService(store, log)
	return service.NewActivityService(store, log), service.NewLeadService(store, settings, log), store
}

func TestActivityCreate_NoteOnLead(t *testing.T) {
	activities, leads, _ := newActivityFixture(t)
	ctx := context.Background()

	lead, err := leads.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	note, err := activities.Create(ctx, &domain.CreateActivityRequest{
		Type:        domain.ActivityNoteAdded,
		Description: "Left a voicemail, will call back Thursday",
		EntityKind:  domain.EntityLead,
		EntityID:    lead.ID,
	}, "admin@timberline.test")
	require.NoError(t, err)
	assert.Equal(t, "admin@timberline.test", note.PerformedBy)
}

func TestActivityCreate_RejectsMissingEntity(t *testing.T) {
	activities, _, _ := newActivityFixture(t)

	_, err := activities.Create(context.Background(), &domain.CreateActivityRequest{
		Type:        domain.ActivityNoteAdded,
		Description: "Orphan note",
		EntityKind:  domain.EntityDeal,
		EntityID:    "missing",
	}, "admin@timberline.test")
	assert.ErrorIs(t, err, service.ErrDealNotFound)
}

func TestActivityCreate_DeletedLeadStillAddressable(t *testing.T) {
	activities, leads, _ := newActivityFixture(t)
	ctx := context.Background()

	lead, err := leads.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)
	require.NoError(t, leads.Delete(ctx, lead.ID, "admin@timberline.test"))

	_, err = activities.Create(ctx, &domain.CreateActivityRequest{
		Type:        domain.ActivityNoteAdded,
		Description: "Post-mortem note on a dropped inquiry",
		EntityKind:  domain.EntityLead,
		EntityID:    lead.ID,
	}, "admin@timberline.test")
	require.NoError(t, err)
}

func TestActivityList_FilterByEntityAndType(t *testing.T) {
	activities, leads, _ := newActivityFixture(t)
	ctx := context.Background()

	lead, err := leads.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)
	other, err := leads.Create(ctx, &domain.CreateLeadRequest{FullName: "Eli"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	kind := domain.EntityLead
	got, err := activities.List(ctx, domain.ListActivitiesParams{Kind: &kind, EntityID: &lead.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, lead.ID, got[0].Ref.ID)

	actType := domain.ActivityLeadCreatedManual
	got, err = activities.List(ctx, domain.ListActivitiesParams{Type: &actType})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_ = other
}

func TestActivityList_RejectsUnknownFilters(t *testing.T) {
	activities, _, _ := newActivityFixture(t)
	ctx := context.Background()

	badKind := domain.EntityKind("warehouse")
	_, err := activities.List(ctx, domain.ListActivitiesParams{Kind: &badKind})
	var vocabErr *domain.VocabularyError
	require.ErrorAs(t, err, &vocabErr)

	badType := domain.ActivityType("telepathy")
	_, err = activities.List(ctx, domain.ListActivitiesParams{Type: &badType})
	require.ErrorAs(t, err, &vocabErr)
}

func TestActivityDelete(t *testing.T) {
	activities, leads, _ := newActivityFixture(t)
	ctx := context.Background()

	lead, err := leads.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	note, err := activities.Create(ctx, &domain.CreateActivityRequest{
		Type:        domain.ActivityNoteAdded,
		Description: "Mis-logged",
		EntityKind:  domain.EntityLead,
		EntityID:    lead.ID,
	}, "admin@timberline.test")
	require.NoError(t, err)

	require.NoError(t, activities.Delete(ctx, note.ID))
	_, err = activities.Get(ctx, note.ID)
	assert.ErrorIs(t, err, service.ErrActivityNotFound)

	assert.ErrorIs(t, activities.Delete(ctx, note.ID), service.ErrActivityNotFound)
}
