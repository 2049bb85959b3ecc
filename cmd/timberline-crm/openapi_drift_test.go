package main

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"testing"

	"timberline-crm/internal/config"
	"timberline-crm/internal/http/docs"
	"timberline-crm/internal/http/handler"
	"timberline-crm/internal/observability/logger"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

// TestOpenAPIDriftCheck fails when a mounted route is missing from the
// embedded OpenAPI document.
func TestOpenAPIDriftCheck(t *testing.T) {
	cfg := &config.Config{
		OTELServiceName: "timberline-crm-test",
		AppEnv:          "test",
	}
	log, _ := logger.New("timberline-crm-test", "error")

	deps := RouterDeps{
		Cfg:             cfg,
		Log:             log,
		SessionHandler:  &handler.SessionHandler{},
		IntakeHandler:   &handler.IntakeHandler{},
		LeadHandler:     &handler.LeadHandler{},
		ClientHandler:   &handler.ClientHandler{},
		DealHandler:     &handler.DealHandler{},
		ActivityHandler: &handler.ActivityHandler{},
		SettingsHandler: &handler.SettingsHandler{},
		SearchHandler:   &handler.SearchHandler{},
		UploadHandler:   &handler.UploadHandler{},
	}
	r := buildRouter(deps)

	specBytes := docs.GetSpecBytes()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specBytes)
	if err != nil {
		t.Fatalf("failed to load OpenAPI spec: %v", err)
	}

	documentedRoutes := make(map[string]bool)
	for path, pathItem := range doc.Paths.Map() {
		for method := range pathItem.Operations() {
			documentedRoutes[fmt.Sprintf("%s %s", strings.ToUpper(method), path)] = true
		}
	}

	implementedRoutes := make(map[string]bool)
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		// Operational endpoints are not part of the documented API surface.
		switch {
		case strings.HasPrefix(route, "/metrics"),
			strings.HasPrefix(route, "/openapi.yaml"),
			strings.HasPrefix(route, "/docs"),
			strings.HasPrefix(route, "/uploads/"):
			return nil
		}

		m := strings.ToUpper(method)
		if m != "GET" && m != "POST" && m != "PUT" && m != "PATCH" && m != "DELETE" {
			return nil
		}

		normalizedPath := normalizeChiPath(route)
		implementedRoutes[fmt.Sprintf("%s %s", m, normalizedPath)] = true
		return nil
	}

	if err := chi.Walk(r, walkFunc); err != nil {
		t.Fatalf("failed to walk chi router: %v", err)
	}

	var missingRoutes []string
	for route := range implementedRoutes {
		if !documentedRoutes[route] {
			missingRoutes = append(missingRoutes, route)
		}
	}

	if len(missingRoutes) > 0 {
		sort.Strings(missingRoutes)
		t.Errorf("Drift detected! The following routes are implemented but NOT documented in OpenAPI:\n%s",
			strings.Join(missingRoutes, "\n"))
	}
}

// normalizeChiPath removes regex from chi parameters and trailing slashes.
func normalizeChiPath(path string) string {
	re := regexp.MustCompile(`\{([^:]+):[^}]+\}`)
	normalized := re.ReplaceAllString(path, "{$1}")

	if len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = normalized[:len(normalized)-1]
	}
	return normalized
}
