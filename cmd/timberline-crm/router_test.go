package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"timberline-crm/internal/auth"
	"timberline-crm/internal/config"
	"timberline-crm/internal/http/handler"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/ratelimit"
	"timberline-crm/internal/service"
	"timberline-crm/internal/storetest"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAdminEmail    = "admin@timberline.test"
	testAdminPassword = "opensesame"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "test",
		OTELServiceName:   "timberline-crm-test",
		SessionCookieName: "admin_session",
		AdminRatePerMin:   1000,
		IntakeRatePerMin:  100,
	}
}

// newTestRouter wires the full stack against the in-memory store.
func newTestRouter(t *testing.T, cfg *config.Config) (chi.Router, *storetest.MemStore) {
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

	sessions := auth.NewSessionManager(make([]byte, 32), cfg.SessionCookieName, time.Hour, false)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	r := buildRouter(RouterDeps{
		Cfg:      cfg,
		Log:      log,
		Sessions: sessions,
		Limiter:  ratelimit.NewMemoryRateLimiter(),

		SessionHandler:  handler.NewSessionHandler(sessions, testAdminEmail, string(hash)),
		IntakeHandler:   handler.NewIntakeHandler(leadService),
		LeadHandler:     handler.NewLeadHandler(leadService),
		ClientHandler:   handler.NewClientHandler(clientService),
		DealHandler:     handler.NewDealHandler(dealService),
		ActivityHandler: handler.NewActivityHandler(activityService),
		SettingsHandler: handler.NewSettingsHandler(settingsService),
		SearchHandler:   handler.NewSearchHandler(searchService),
	})

	return r, store
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// login authenticates as the test admin and returns the session cookie.
func login(t *testing.T, r chi.Router) *http.Cookie {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    testAdminEmail,
		"password": testAdminPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := w.Result()
	defer res.Body.Close()
	for _, c := range res.Cookies() {
		if c.Name == "admin_session" {
			return c
		}
	}
	t.Fatal("login response did not set the session cookie")
	return nil
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := doJSON(t, r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthEndpoint_ReturnsRequestID(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := doJSON(t, r, http.MethodGet, "/health", nil)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestReadyEndpoint_NilPool(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := doJSON(t, r, http.MethodGet, "/ready", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
}

func TestDocsEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := doJSON(t, r, http.MethodGet, "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	w = doJSON(t, r, http.MethodGet, "/docs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}

func TestAdminSurfaceRequiresSession(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	for _, path := range []string{
		"/api/crm/leads",
		"/api/crm/clients",
		"/api/crm/deals",
		"/api/crm/activities",
		"/api/crm/settings",
		"/api/crm/search?q=kitchen",
	} {
		w := doJSON(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Contains(t, w.Body.String(), "MISSING_SESSION", path)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := doJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    testAdminEmail,
		"password": "not-the-password",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_SESSION")
}

func TestLoginThenMe(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	cookie := login(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/auth/me", nil, cookie)

	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		OK    bool   `json:"ok"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.OK)
	assert.Equal(t, testAdminEmail, res.Email)
}

func TestPublicIntakeThenAdminList(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	// The website form needs no session.
	w := doJSON(t, r, http.MethodPost, "/api/crm/lead", map[string]any{
		"fullName":    "Dana Weaver",
		"email":       "dana@example.com",
		"serviceType": "kitchen",
		"message":     "Looking for a full kitchen remodel.",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var lead struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Origin string `json:"origin"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lead))
	assert.Equal(t, "new", lead.Status)
	assert.Equal(t, "auto_website_form", lead.Origin)

	cookie := login(t, r)
	w = doJSON(t, r, http.MethodGet, "/api/crm/leads", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), lead.ID)
	assert.Contains(t, w.Body.String(), "Dana Weaver")
}

func TestLeadUpdate_PutAndPatchBehaveTheSame(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	cookie := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/crm/leads", map[string]any{
		"fullName": "Robin Falk",
	}, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var lead struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lead))

	w = doJSON(t, r, http.MethodPatch, "/api/crm/leads/"+lead.ID, map[string]any{
		"status": "contacted",
	}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPut, "/api/crm/leads/"+lead.ID, map[string]any{
		"status": "quoted",
	}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "quoted")
}

func TestIntakeRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.IntakeRatePerMin = 2
	r, _ := newTestRouter(t, cfg)

	body := map[string]any{"fullName": "Rate Limit Probe"}
	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/api/crm/lead", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := doJSON(t, r, http.MethodPost, "/api/crm/lead", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestUnknownBodyFieldRejected(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())
	cookie := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/crm/leads", map[string]any{
		"fullName": "Sam Porter",
		"surprise": true,
	}, cookie)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_FORMAT")
}

func TestLogoutClearsCookie(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	w := doJSON(t, r, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)

	res := w.Result()
	defer res.Body.Close()
	var cleared bool
	for _, c := range res.Cookies() {
		if c.Name == "admin_session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "logout should expire the session cookie")
}
