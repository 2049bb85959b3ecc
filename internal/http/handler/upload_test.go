package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/http/handler"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/service"
	"timberline-crm/internal/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUploadHandler(t *testing.T, maxBytes int64) *handler.UploadHandler {
	t.Helper()

	log, err := logger.New("timberline-crm-test", "error")
	require.NoError(t, err)

	store := storetest.New()
	assets := service.NewAssetService(store.Assets(), t.TempDir(), maxBytes, log)
	return handler.NewUploadHandler(assets, maxBytes)
}

func multipartBody(t *testing.T, kind, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if kind != "" {
		require.NoError(t, mw.WriteField("kind", kind))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload_OK(t *testing.T) {
	h := newUploadHandler(t, 1024)

	body, contentType := multipartBody(t, "document", "estimate.pdf", "pdf bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/crm/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var asset domain.Asset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &asset))
	assert.Equal(t, domain.AssetKindDocument, asset.Kind)
	assert.Equal(t, "estimate.pdf", asset.Filename)
	assert.True(t, strings.HasPrefix(asset.URL, "/uploads/"))
}

func TestUpload_DefaultsToImageKind(t *testing.T) {
	h := newUploadHandler(t, 1024)

	body, contentType := multipartBody(t, "", "after.png", "png bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/crm/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var asset domain.Asset
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &asset))
	assert.Equal(t, domain.AssetKindImage, asset.Kind)
}

func TestUpload_MissingFile(t *testing.T) {
	h := newUploadHandler(t, 1024)

	body, contentType := multipartBody(t, "image", "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/crm/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_PARAMETER")
}

func TestUpload_BadKind(t *testing.T) {
	h := newUploadHandler(t, 1024)

	body, contentType := multipartBody(t, "spreadsheet", "x.xlsx", "data")
	req := httptest.NewRequest(http.MethodPost, "/api/crm/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TYPE")
}

func TestUpload_NotMultipart(t *testing.T) {
	h := newUploadHandler(t, 1024)

	req := httptest.NewRequest(http.MethodPost, "/api/crm/uploads", strings.NewReader(`{"file":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_FORMAT")
}
