package handler

import (
	"net/http"

	"timberline-crm/internal/http/httperr"
	"timberline-crm/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search handles GET /api/crm/search?q=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("q")
	if query == "" {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeMissingParameter, "q is required")
		return
	}

	results, err := h.search.Search(ctx, query)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}
