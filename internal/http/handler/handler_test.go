package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/http/handler"
	"timberline-crm/internal/http/httperr"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/service"
	"timberline-crm/internal/storetest"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// crmFixture wires every handler onto a chi router backed by the in-memory
// store, without the session middleware: these tests exercise the HTTP
// translation layer, not auth.
type crmFixture struct {
	router chi.Router
	store  *storetest.MemStore

	leads   *service.LeadService
	clients *service.ClientService
	deals   *service.DealService
}

func newFixture(t *testing.T) *crmFixture {
	t.Helper()

	log, err := logger.New("timberline-crm-test", "error")
	require.NoError(t, err)

	store := storetest.New()
	settingsService := service.NewSettingsService(store, log)
	leadService := service.NewLeadService(store, settingsService, log)
	clientService := service.NewClientService(store, log)
	dealService := service.NewDealService(store, settingsService, log)
	activityService := service.NewActivityService(store, log)
	searchService := service.NewSearchService(store, log)

	leadHandler := handler.NewLeadHandler(leadService)
	clientHandler := handler.NewClientHandler(clientService)
	dealHandler := handler.NewDealHandler(dealService)
	activityHandler := handler.NewActivityHandler(activityService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	searchHandler := handler.NewSearchHandler(searchService)
	intakeHandler := handler.NewIntakeHandler(leadService)

	r := chi.NewRouter()
	r.Post("/api/crm/lead", intakeHandler.SubmitLead)
	r.Route("/api/crm", func(r chi.Router) {
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", leadHandler.ListLeads)
			r.Post("/", leadHandler.CreateLead)
			r.Route("/{leadId}", func(r chi.Router) {
				r.Get("/", leadHandler.GetLead)
				r.Patch("/", leadHandler.UpdateLead)
				r.Delete("/", leadHandler.DeleteLead)
			})
		})
		r.Route("/clients", func(r chi.Router) {
			r.Post("/", clientHandler.CreateClient)
			r.Delete("/{clientId}", clientHandler.DeleteClient)
		})
		r.Route("/deals", func(r chi.Router) {
			r.Post("/", dealHandler.CreateDeal)
			r.Delete("/{dealId}", dealHandler.DeleteDeal)
		})
		r.Get("/activities", activityHandler.ListActivities)
		r.Get("/settings", settingsHandler.GetSettings)
		r.Get("/search", searchHandler.Search)
	})

	return &crmFixture{
		router:  r,
		store:   store,
		leads:   leadService,
		clients: clientService,
		deals:   dealService,
	}
}

func (f *crmFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var res httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	require.NotNil(t, res.Error)
	return res.Error.Code
}

func TestGetLead_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/crm/leads/no-such-lead", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestCreateLead_UnknownStatusRejected(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/crm/leads", map[string]any{
		"fullName": "Jordan Pine",
		"status":   "definitely_not_a_stage",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	assert.Contains(t, w.Body.String(), "status")
	assert.Equal(t, 0, f.store.ActivityCount(), "rejected create must not write anything")
}

func TestIntake_IgnoresClientSuppliedStatus(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/crm/lead", map[string]any{
		"fullName": "Casey Brook",
		"status":   "won",
		"priority": "high",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var lead domain.Lead
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lead))
	assert.Equal(t, "new", lead.Status)
	assert.Equal(t, domain.LeadPriorityMedium, lead.Priority)
	assert.Equal(t, domain.LeadOriginAutoWebsiteForm, lead.Origin)
}

func TestDeleteClient_BlockedByDeals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	client, err := f.clients.Create(ctx, &domain.CreateClientRequest{FullName: "Morgan Hale"}, "admin@timberline.test")
	require.NoError(t, err)

	deal, err := f.deals.Create(ctx, &domain.CreateDealRequest{ClientID: client.ID, Title: "Garage addition"}, "admin@timberline.test")
	require.NoError(t, err)

	w := f.do(t, http.MethodDelete, "/api/crm/clients/"+client.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))
	assert.Contains(t, w.Body.String(), "delete the deals first")

	w = f.do(t, http.MethodDelete, "/api/crm/deals/"+deal.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodDelete, "/api/crm/clients/"+client.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteLead_TwiceRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lead, err := f.leads.Create(ctx, &domain.CreateLeadRequest{FullName: "Avery Stone"}, domain.LeadOriginManual, "admin@timberline.test")
	require.NoError(t, err)

	w := f.do(t, http.MethodDelete, "/api/crm/leads/"+lead.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodDelete, "/api/crm/leads/"+lead.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))
}

func TestGetSettings_ReportsDefaultsSource(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/crm/settings", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "defaults", w.Header().Get("X-Settings-Source"))
}

func TestListActivities_KindWithoutID(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/crm/activities?entityKind=lead", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_PARAMETER", errorCode(t, w))
}

func TestListLeads_BadLimit(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/crm/leads?limit=0", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, w))
}

func TestSearch_MissingQuery(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/crm/search", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_PARAMETER", errorCode(t, w))
}

func TestStoreConnectivityFailureMapsTo502(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("leads.list", &pgconn.PgError{Code: "08006", Message: "connection failure"})

	w := f.do(t, http.MethodGet, "/api/crm/leads", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "STORE_UNAVAILABLE", errorCode(t, w))
}

func TestUnknownStoreErrorMapsTo500(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("leads.list", assert.AnError)

	w := f.do(t, http.MethodGet, "/api/crm/leads", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}
