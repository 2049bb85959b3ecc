package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"timberline-crm/internal/auth"
	"timberline-crm/internal/domain"
	"timberline-crm/internal/http/httperr"
	"timberline-crm/internal/service"
)

type DealHandler struct {
	deals *service.DealService
}

func NewDealHandler(deals *service.DealService) *DealHandler {
	return &DealHandler{deals: deals}
}

// ListDeals handles GET /api/crm/deals
func (h *DealHandler) ListDeals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := domain.ListDealsParams{Limit: 50}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "limit must be between 1 and 100")
			return
		}
		params.Limit = limit
	}
	if clientID := r.URL.Query().Get("clientId"); clientID != "" {
		params.ClientID = &clientID
	}
	if status := r.URL.Query().Get("status"); status != "" {
		params.Status = &status
	}

	deals, err := h.deals.List(ctx, params)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, deals)
}

// GetDeal handles GET /api/crm/deals/{dealId}
func (h *DealHandler) GetDeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dealID := chi.URLParam(r, "dealId")

	deal, err := h.deals.Get(ctx, dealID)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// CreateDeal handles POST /api/crm/deals
func (h *DealHandler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateDealRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	deal, err := h.deals.Create(ctx, &req, auth.ActorEmail(ctx))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusCreated, deal)
}

// UpdateDeal handles PATCH /api/crm/deals/{dealId}
func (h *DealHandler) UpdateDeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dealID := chi.URLParam(r, "dealId")

	var req domain.UpdateDealRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	deal, err := h.deals.Update(ctx, dealID, &req, auth.ActorEmail(ctx))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// DeleteDeal handles DELETE /api/crm/deals/{dealId}
func (h *DealHandler) DeleteDeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dealID := chi.URLParam(r, "dealId")

	if err := h.deals.Delete(ctx, dealID, auth.ActorEmail(ctx)); err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
