package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/service"
	"timberline-crm/internal/storetest"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("timberline-crm-test", "error")
	require.NoError(t, err)
	return log
}

func newLeadService(t *testing.T) (*service.LeadService, *storetest.MemStore) {
	t.Helper()
	store := storetest.New()
	log := testLogger(t)
	settings := service.NewSettingsService(store, log)
	return service.NewLeadService(store, settings, log), store
}

func TestLeadCreate_WritesLeadAndActivityTogether(t *testing.T) {
	svc, store := newLeadService(t)
	ctx := context.Background()

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{
		FullName: "Dana Whitfield",
		Email:    "dana@example.com",
		Source:   "referral",
	}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	assert.Equal(t, "new", lead.Status)
	assert.Equal(t, domain.LeadPriorityMedium, lead.Priority)

	acts := store.ActivitiesFor(domain.EntityLead, lead.ID)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActivityLeadCreatedManual, acts[0].Type)
	assert.Equal(t, "admin@timberline.test", acts[0].PerformedBy)
}

func TestLeadCreate_PublicFormUsesAutoTypeAndSystemActor(t *testing.T) {
	svc, store := newLeadService(t)

	lead, err := svc.Create(context.Background(), &domain.CreateLeadRequest{
		FullName: "Walk-in Visitor",
		Message:  "Need a deck quote",
	}, domain.LeadOriginAutoWebsiteForm, domain.SystemActor)
	require.NoError(t, err)

	acts := store.ActivitiesFor(domain.EntityLead, lead.ID)
	require.Len(t, acts, 1)
	assert.Equal(t, domain.ActivityLeadCreatedAuto, acts[0].Type)
	assert.Equal(t, domain.SystemActor, acts[0].PerformedBy)
}

func TestLeadCreate_ActivityFailureRollsBackLead(t *testing.T) {
	svc, store := newLeadService(t)
	store.FailOn("activities.create", errors.New("disk full"))

	_, err := svc.Create(context.Background(), &domain.CreateLeadRequest{
		FullName: "Ghost Lead",
	}, domain.LeadOriginManual, "admin@timberline.test")
	require.Error(t, err)

	// Neither half of the write may survive.
	leads, total, _, err := store.Leads().List(context.Background(), domain.ListLeadsParams{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, leads)
	assert.Zero(t, total)
	assert.Zero(t, store.ActivityCount())
}

func TestLeadCreate_RejectsUnknownVocabulary(t *testing.T) {
	svc, store := newLeadService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateLeadRequest
	}{
		{"unknown status", domain.CreateLeadRequest{FullName: "A", Status: "simmering"}},
		{"unknown source", domain.CreateLeadRequest{FullName: "B", Source: "carrier_pigeon"}},
		{"unknown service type", domain.CreateLeadRequest{FullName: "C", ServiceType: "moat_digging"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, &tc.req, domain.LeadOriginManual, "admin@timberline.test")
			var vocabErr *domain.VocabularyError
			require.ErrorAs(t, err, &vocabErr)
		})
	}

	assert.Zero(t, store.ActivityCount())
}

func TestLeadCreate_FailsClosedWhenSettingsUnavailable(t *testing.T) {
	svc, store := newLeadService(t)
	store.FailOn("settings.get", errors.New("connection refused"))

	_, err := svc.Create(context.Background(), &domain.CreateLeadRequest{
		FullName: "Blocked",
		Status:   "new",
	}, domain.LeadOriginManual, "admin@timberline.test")
	require.Error(t, err)

	var vocabErr *domain.VocabularyError
	assert.False(t, errors.As(err, &vocabErr))
	assert.Zero(t, store.ActivityCount())
}

func TestLeadUpdate_StatusChangeRecordsOldAndNew(t *testing.T) {
	svc, store := newLeadService(t)
	ctx := context.Background()

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	contacted := "contacted"
	updated, err := svc.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &contacted}, "admin@timberline.test")
	require.NoError(t, err)
	assert.Equal(t, "contacted", updated.Status)

	acts := store.ActivitiesFor(domain.EntityLead, lead.ID)
	require.Len(t, acts, 2)
	change := acts[1]
	assert.Equal(t, domain.ActivityStatusChanged, change.Type)
	assert.Equal(t, "new", change.Metadata[domain.MetaOldStatus])
	assert.Equal(t, "contacted", change.Metadata[domain.MetaNewStatus])
}

func TestLeadUpdate_SameStatusIsPlainUpdateWithoutActivity(t *testing.T) {
	svc, store := newLeadService(t)
	ctx := context.Background()

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	same := lead.Status
	phone := "555-0100"
	updated, err := svc.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &same, Phone: &phone}, "admin@timberline.test")
	require.NoError(t, err)
	assert.Equal(t, "555-0100", updated.Phone)

	// Only the creation activity exists.
	assert.Len(t, store.ActivitiesFor(domain.EntityLead, lead.ID), 1)
}

func TestLeadUpdate_ActivityFailureRollsBackStatusChange(t *testing.T) {
	svc, store := newLeadService(t)
	ctx := context.Background()

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	store.FailOn("activities.create", errors.New("write failed"))

	quoted := "quoted"
	_, err = svc.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Status: &quoted}, "admin@timberline.test")
	require.Error(t, err)

	store.FailOn("activities.create", nil)
	got, err := svc.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Status, "status must revert with the failed activity write")
}

func TestLeadDelete_SoftDeletesAndHidesEverywhere(t *testing.T) {
	svc, store := newLeadService(t)
	ctx := context.Background()

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana Whitfield"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, lead.ID, "admin@timberline.test"))

	_, err = svc.Get(ctx, lead.ID)
	assert.ErrorIs(t, err, service.ErrLeadNotFound)

	resp, err := svc.List(ctx, domain.ListLeadsParams{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	assert.Zero(t, resp.Meta.Total)

	hits, err := store.Leads().Search(ctx, "Whitfield", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// History survives the soft delete.
	acts := store.ActivitiesFor(domain.EntityLead, lead.ID)
	require.Len(t, acts, 2)
	assert.Equal(t, domain.ActivityLeadDeleted, acts[1].Type)
}

func TestLeadDelete_RejectsSecondDelete(t *testing.T) {
	svc, _ := newLeadService(t)
	ctx := context.Background()

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, lead.ID, "admin@timberline.test"))
	err = svc.Delete(ctx, lead.ID, "admin@timberline.test")
	assert.ErrorIs(t, err, service.ErrLeadAlreadyDeleted)
}

func TestLeadUpdate_DeletedLeadIsNotFound(t *testing.T) {
	svc, _ := newLeadService(t)
	ctx := context.Background()

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{FullName: "Dana"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, lead.ID, "admin@timberline.test"))

	name := "Renamed"
	_, err = svc.Update(ctx, lead.ID, &domain.UpdateLeadRequest{FullName: &name}, "admin@timberline.test")
	assert.ErrorIs(t, err, service.ErrLeadNotFound)
}

func TestLeadList_Pagination(t *testing.T) {
	svc, _ := newLeadService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, &domain.CreateLeadRequest{FullName: "Lead"}, domain.LeadOriginManual, "admin@timberline.test")
		require.NoError(t, err)
	}

	resp, err := svc.List(ctx, domain.ListLeadsParams{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 5, resp.Meta.Total)
	assert.True(t, resp.Meta.HasNextPage)
	require.NotNil(t, resp.Meta.NextCursor)
}
