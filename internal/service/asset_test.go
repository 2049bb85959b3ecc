package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/service"
	"timberline-crm/internal/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssetService(t *testing.T, maxBytes int64) (*service.AssetService, *storetest.MemStore, string) {
	t.Helper()
	store := storetest.New()
	dir := t.TempDir()
	return service.NewAssetService(store.Assets(), dir, maxBytes, testLogger(t)), store, dir
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestAssetUpload(t *testing.T) {
	svc, _, dir := newAssetService(t, 1024)

	asset, err := svc.Upload(context.Background(), domain.AssetKindImage, "deck photo.JPG", "image/jpeg", strings.NewReader("fake jpeg bytes"))
	require.NoError(t, err)

	assert.Equal(t, domain.AssetKindImage, asset.Kind)
	assert.Equal(t, "deck photo.JPG", asset.Filename)
	assert.Equal(t, int64(len("fake jpeg bytes")), asset.SizeBytes)
	assert.True(t, strings.HasPrefix(asset.URL, "/uploads/"))
	assert.True(t, strings.HasSuffix(asset.URL, ".jpg"), "extension should be lowercased: %s", asset.URL)

	entries := dirEntries(t, dir)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "fake jpeg bytes", string(data))
}

func TestAssetUpload_InvalidKind(t *testing.T) {
	svc, _, dir := newAssetService(t, 1024)

	_, err := svc.Upload(context.Background(), domain.AssetKind("spreadsheet"), "x.xlsx", "application/unknown", strings.NewReader("data"))
	assert.ErrorIs(t, err, service.ErrAssetKindInvalid)
	assert.Empty(t, dirEntries(t, dir))
}

func TestAssetUpload_TooLargeRemovesFile(t *testing.T) {
	svc, _, dir := newAssetService(t, 8)

	_, err := svc.Upload(context.Background(), domain.AssetKindDocument, "quote.pdf", "application/pdf", strings.NewReader("well over eight bytes"))
	assert.ErrorIs(t, err, service.ErrAssetTooLarge)
	assert.Empty(t, dirEntries(t, dir), "oversized upload must not leave a partial file behind")
}

func TestAssetUpload_MetadataFailureRemovesFile(t *testing.T) {
	svc, store, dir := newAssetService(t, 1024)
	store.FailOn("assets.create", errors.New("insert failed"))

	_, err := svc.Upload(context.Background(), domain.AssetKindImage, "before.png", "image/png", strings.NewReader("png bytes"))
	require.Error(t, err)
	assert.Empty(t, dirEntries(t, dir), "unrecorded blobs must not stay on disk")
}

func TestAssetUpload_StripsDirectoryFromFilename(t *testing.T) {
	svc, _, _ := newAssetService(t, 1024)

	asset, err := svc.Upload(context.Background(), domain.AssetKindImage, "../../etc/passwd.png", "image/png", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "passwd.png", asset.Filename)
	assert.NotContains(t, asset.URL, "..")
}
