package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"timberline-crm/internal/auth"
	"timberline-crm/internal/domain"
	"timberline-crm/internal/http/httperr"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/service"
)

type LeadHandler struct {
	leads *service.LeadService
}

func NewLeadHandler(leads *service.LeadService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// ListLeads handles GET /api/crm/leads
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := domain.ListLeadsParams{Limit: 50}

	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		params.Cursor = &cursor
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "limit must be between 1 and 100")
			return
		}
		params.Limit = limit
	}
	if status := r.URL.Query().Get("status"); status != "" {
		params.Status = &status
	}

	response, err := h.leads.List(ctx, params)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// GetLead handles GET /api/crm/leads/{leadId}
func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	leadID := chi.URLParam(r, "leadId")

	lead, err := h.leads.Get(ctx, leadID)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// CreateLead handles POST /api/crm/leads (admin, origin manual)
func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	var req domain.CreateLeadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	lead, err := h.leads.Create(ctx, &req, domain.LeadOriginManual, auth.ActorEmail(ctx))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	log.Info(ctx, "lead created via admin API", zap.String("lead_id", lead.ID))
	writeJSON(w, http.StatusCreated, lead)
}

// UpdateLead handles PATCH /api/crm/leads/{leadId}
func (h *LeadHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	leadID := chi.URLParam(r, "leadId")

	var req domain.UpdateLeadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	lead, err := h.leads.Update(ctx, leadID, &req, auth.ActorEmail(ctx))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// DeleteLead handles DELETE /api/crm/leads/{leadId}
func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	leadID := chi.URLParam(r, "leadId")

	if err := h.leads.Delete(ctx, leadID, auth.ActorEmail(ctx)); err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
