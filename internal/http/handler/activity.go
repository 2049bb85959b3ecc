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

type ActivityHandler struct {
	activities *service.ActivityService
}

func NewActivityHandler(activities *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// ListActivities handles GET /api/crm/activities
func (h *ActivityHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := domain.ListActivitiesParams{Limit: 50}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 200 {
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidParameter, "limit must be between 1 and 200")
			return
		}
		params.Limit = limit
	}

	kindStr := r.URL.Query().Get("entityKind")
	entityID := r.URL.Query().Get("entityId")
	if (kindStr == "") != (entityID == "") {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeMissingParameter, "entityKind and entityId must be provided together")
		return
	}
	if kindStr != "" {
		kind := domain.EntityKind(kindStr)
		params.Kind = &kind
		params.EntityID = &entityID
	}

	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		actType := domain.ActivityType(typeStr)
		params.Type = &actType
	}

	activities, err := h.activities.List(ctx, params)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, activities)
}

// CreateActivity handles POST /api/crm/activities (manual notes)
func (h *ActivityHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	activity, err := h.activities.Create(ctx, &req, auth.ActorEmail(ctx))
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusCreated, activity)
}

// DeleteActivity handles DELETE /api/crm/activities/{activityId}
func (h *ActivityHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	activityID := chi.URLParam(r, "activityId")

	if err := h.activities.Delete(ctx, activityID); err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
