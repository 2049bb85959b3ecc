package handler

import (
	"net/http"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/service"
)

type SettingsHandler struct {
	settings *service.SettingsService
}

func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings handles GET /api/crm/settings. Returns the stored document or
// the compiled defaults when none exists yet; X-Settings-Source tells the
// caller which one they got.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	settings, stored, err := h.settings.Get(ctx)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	source := "defaults"
	if stored {
		source = "stored"
	}
	w.Header().Set("X-Settings-Source", source)

	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /api/crm/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.UpdateSettingsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	settings, err := h.settings.Update(ctx, &req)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}
