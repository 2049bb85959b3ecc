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

type ClientHandler struct {
	clients *service.ClientService
}

func NewClientHandler(clients *service.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// ListClients handles GET /api/crm/clients
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := domain.ListClientsParams{Limit: 50}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "limit must be between 1 and 100")
			return
		}
		params.Limit = limit
	}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.ClientStatus(statusStr)
		if !status.IsValid() {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidStatus, "status must be one of: active, past")
			return
		}
		params.Status = &status
	}

	clients, err := h.clients.List(ctx, params)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, clients)
}

// GetClient handles GET /api/crm/clients/{clientId}
func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := chi.URLParam(r, "clientId")

	client, err := h.clients.Get(ctx, clientID)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

// CreateClient handles POST /api/crm/clients. With sourceLeadId set the
// request is a lead conversion.
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	var req domain.CreateClientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	client, err := h.clients.Create(ctx, &req, auth.ActorEmail(ctx))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	if req.SourceLeadID != nil {
		log.Info(ctx, "lead converted via API",
			zap.String("client_id", client.ID),
			zap.String("lead_id", *req.SourceLeadID),
		)
	}

	writeJSON(w, http.StatusCreated, client)
}

// UpdateClient handles PATCH /api/crm/clients/{clientId}
func (h *ClientHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := chi.URLParam(r, "clientId")

	var req domain.UpdateClientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	client, err := h.clients.Update(ctx, clientID, &req, auth.ActorEmail(ctx))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, client)
}

// DeleteClient handles DELETE /api/crm/clients/{clientId}
func (h *ClientHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := chi.URLParam(r, "clientId")

	if err := h.clients.Delete(ctx, clientID, auth.ActorEmail(ctx)); err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
