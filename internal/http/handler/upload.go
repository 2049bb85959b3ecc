package handler

import (
	"errors"
	"net/http"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/http/httperr"
	"timberline-crm/internal/service"
)

type UploadHandler struct {
	assets   *service.AssetService
	maxBytes int64
}

func NewUploadHandler(assets *service.AssetService, maxBytes int64) *UploadHandler {
	return &UploadHandler{assets: assets, maxBytes: maxBytes}
}

// Upload handles POST /api/crm/uploads (multipart form: file, kind)
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "invalid multipart form or file too large")
		return
	}

	kind := domain.AssetKind(r.FormValue("kind"))
	if kind == "" {
		kind = domain.AssetKindImage
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httperr.BadRequest400(w, ctx, httperr.ErrCodeMissingParameter, "file is required")
		return
	}
	defer file.Close()

	asset, err := h.assets.Upload(ctx, kind, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAssetKindInvalid):
			httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidType, "kind must be one of: image, video, document")
		case errors.Is(err, service.ErrAssetTooLarge):
			httperr.WriteError(w, ctx, http.StatusRequestEntityTooLarge, httperr.ErrCodeInvalidParameter, "file exceeds the upload size limit")
		default:
			handleServiceError(w, ctx, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}
