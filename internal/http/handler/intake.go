package handler

import (
	"net/http"

	"go.uber.org/zap"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/service"
)

// IntakeHandler serves the one unauthenticated write endpoint: the website
// contact form. Everything it creates is attributed to the system actor and
// tagged with the auto origin so admins can tell form inquiries from leads
// they typed in themselves.
type IntakeHandler struct {
	leads *service.LeadService
}

func NewIntakeHandler(leads *service.LeadService) *IntakeHandler {
	return &IntakeHandler{leads: leads}
}

// SubmitLead handles POST /api/crm/lead (public)
func (h *IntakeHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.GetLogger(ctx)

	var req domain.CreateLeadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// The public form never picks a pipeline stage or priority.
	req.Status = ""
	req.Priority = ""

	if err := req.Validate(); err != nil {
		writeValidationError(w, ctx, err)
		return
	}

	lead, err := h.leads.Create(ctx, &req, domain.LeadOriginAutoWebsiteForm, domain.SystemActor)
	if err != nil {
		handleServiceError(w, ctx, err)
		return
	}

	log.Info(ctx, "website lead received",
		logger.Module("intake"),
		logger.Action("submit"),
		zap.String("lead_id", lead.ID),
	)

	writeJSON(w, http.StatusCreated, lead)
}
