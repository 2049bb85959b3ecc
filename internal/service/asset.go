package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"timberline-crm/internal/domain"
	"timberline-crm/internal/observability/logger"
)

var (
	ErrAssetTooLarge    = errors.New("asset exceeds the upload size limit")
	ErrAssetKindInvalid = errors.New("invalid asset kind")
)

// AssetService stores uploaded binaries on disk under random names and
// records their metadata. Original filenames are kept as metadata only; the
// stored name is the asset id plus extension, so uploads can never collide or
// traverse paths.
type AssetService struct {
	assets   AssetStore
	dir      string
	maxBytes int64
	log      *logger.Logger
}

func NewAssetService(assets AssetStore, dir string, maxBytes int64, log *logger.Logger) *AssetService {
	return &AssetService{assets: assets, dir: dir, maxBytes: maxBytes, log: log}
}

// Upload writes the blob and its metadata row. If the metadata insert fails
// the file is removed again, so the directory never holds unrecorded blobs.
func (s *AssetService) Upload(ctx context.Context, kind domain.AssetKind, filename, contentType string, r io.Reader) (*domain.Asset, error) {
	if !kind.IsValid() {
		return nil, ErrAssetKindInvalid
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	id := uuid.NewString()
	ext := sanitizeExt(filepath.Ext(filename))
	storedName := id + ext
	path := filepath.Join(s.dir, storedName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create asset file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = ErrAssetTooLarge
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	asset := &domain.Asset{
		ID:          id,
		Kind:        kind,
		Filename:    filepath.Base(filename),
		ContentType: contentType,
		SizeBytes:   written,
		URL:         "/uploads/" + storedName,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.assets.Create(ctx, asset); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("record asset: %w", err)
	}

	s.log.Info(ctx, "asset uploaded",
		logger.Module("asset"),
		logger.Action("upload"),
		zap.String("asset_id", id),
		zap.Int64("size_bytes", written),
	)

	return asset, nil
}

// sanitizeExt keeps only a short alphanumeric extension.
func sanitizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
