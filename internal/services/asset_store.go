package services

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/selectphoto/server/internal/models"
)

// AssetFolder is the top-level folder every photo asset is stored under
const AssetFolder = "select-photo"

// Asset is a stored binary object reachable by URL
type Asset struct {
	ID  string
	URL string
}

// AssetStore uploads, deletes and reads photo assets in an object store.
// Deleting an asset that no longer exists succeeds.
type AssetStore interface {
	Upload(ctx context.Context, assetID string, r io.Reader, size int64) (*Asset, error)
	Delete(ctx context.Context, assetID string) error
	Open(ctx context.Context, assetID string) (io.ReadCloser, error)
}

// NewAssetID builds a fresh asset id inside the project's folder,
// keeping the upload's extension
func NewAssetID(projectID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(AssetFolder, projectID, uuid.New().String()+ext)
}

// UploadPolicy decides which uploaded files are accepted
type UploadPolicy struct {
	allowedExtensions map[string]bool
	maxFileSizeBytes  int64
}

// NewUploadPolicy creates an UploadPolicy. An empty extension list selects
// the common photo formats.
func NewUploadPolicy(allowedExtensions []string, maxFileSizeMB int64) *UploadPolicy {
	extSet := make(map[string]bool)
	if len(allowedExtensions) == 0 {
		for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif"} {
			extSet[ext] = true
		}
	} else {
		for _, ext := range allowedExtensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			extSet[ext] = true
		}
	}

	return &UploadPolicy{
		allowedExtensions: extSet,
		maxFileSizeBytes:  maxFileSizeMB * 1024 * 1024,
	}
}

// Check validates a single upload
func (p *UploadPolicy) Check(filename string, size int64) error {
	if p.maxFileSizeBytes > 0 && size > p.maxFileSizeBytes {
		return models.ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !p.allowedExtensions[ext] {
		return models.ErrInvalidExtension
	}
	return nil
}

// MaxFileSizeBytes returns the per-file size cap, 0 meaning unlimited
func (p *UploadPolicy) MaxFileSizeBytes() int64 {
	return p.maxFileSizeBytes
}
