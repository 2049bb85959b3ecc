package domain

import "time"

// AssetKind restricts what the upload endpoint accepts.
type AssetKind string

const (
	AssetKindImage    AssetKind = "image"
	AssetKindVideo    AssetKind = "video"
	AssetKindDocument AssetKind = "document"
)

func (k AssetKind) IsValid() bool {
	switch k {
	case AssetKindImage, AssetKindVideo, AssetKindDocument:
		return true
	}
	return false
}

// Asset is a stored binary blob reference. The bytes live under the upload
// directory; URL is the stable path handed back to callers for embedding.
type Asset struct {
	ID          string    `json:"id"`
	Kind        AssetKind `json:"kind"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}
