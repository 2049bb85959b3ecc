// Package handler wires the CRM services to their HTTP routes. Handlers
// decode and validate, delegate to a service, and map service errors onto the
// standard error envelope; no business rules live here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/http/httperr"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// decodeBody parses the JSON request body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httperr.BadRequest400(w, r.Context(), httperr.ErrCodeInvalidFormat, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeValidationError maps a validator or vocabulary error onto a 400 with
// field details.
func writeValidationError(w http.ResponseWriter, ctx context.Context, err error) {
	var vocabErr *domain.VocabularyError
	if errors.As(err, &vocabErr) {
		httperr.BadRequest400WithFields(w, ctx, httperr.ErrCodeValidationError, vocabErr.Error(),
			map[string]string{vocabErr.Field: "value not in configured vocabulary"})
		return
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		fields := make(map[string]string, len(valErrs))
		for _, fe := range valErrs {
			fields[fe.Field()] = "failed on " + fe.Tag()
		}
		httperr.BadRequest400WithFields(w, ctx, httperr.ErrCodeValidationError, "request validation failed", fields)
		return
	}

	httperr.BadRequest400(w, ctx, httperr.ErrCodeValidationError, err.Error())
}

// handleServiceError maps service errors to HTTP statuses. Store connectivity
// failures become 502: the API is reachable, its database is not, and the
// client should not mistake that for a bug in the request.
func handleServiceError(w http.ResponseWriter, ctx context.Context, err error) {
	log := logger.GetLogger(ctx)
	logger.SetRootError(ctx, err)

	switch {
	case errors.Is(err, service.ErrLeadNotFound):
		httperr.NotFound404(w, ctx, "lead not found")
	case errors.Is(err, service.ErrClientNotFound):
		httperr.NotFound404(w, ctx, "client not found")
	case errors.Is(err, service.ErrDealNotFound):
		httperr.NotFound404(w, ctx, "deal not found")
	case errors.Is(err, service.ErrActivityNotFound):
		httperr.NotFound404(w, ctx, "activity not found")
	case errors.Is(err, service.ErrLeadAlreadyDeleted):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeConflict, "lead is already deleted")
	case errors.Is(err, service.ErrClientHasDeals):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeConflict, "client still has deals; delete the deals first")
	case errors.Is(err, service.ErrLeadAlreadyConverted):
		httperr.BadRequest400(w, ctx, httperr.ErrCodeConflict, "lead was already converted to a client")
	case isVocabularyError(err):
		writeValidationError(w, ctx, err)
	case isStoreUnavailable(err):
		log.Error(ctx, "backing store unavailable", zap.Error(err))
		httperr.BadGateway502(w, ctx, "data store is unavailable, try again shortly")
	default:
		log.Error(ctx, "unhandled service error", zap.Error(err))
		httperr.InternalError500(w, ctx, "an internal error occurred")
	}
}

func isVocabularyError(err error) bool {
	var vocabErr *domain.VocabularyError
	return errors.As(err, &vocabErr)
}

// isStoreUnavailable detects connectivity-class failures as opposed to SQL
// errors: network errors, and the Postgres 57P01/57P02/57P03 shutdown codes
// plus 08xxx connection exceptions.
func isStoreUnavailable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		return len(code) >= 2 && (code[:2] == "08" || code == "57P01" || code == "57P02" || code == "57P03")
	}

	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}
