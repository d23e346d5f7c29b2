package models

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Photo is one uploaded asset within a project
type Photo struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project"`
	URL        string    `json:"url"`
	AssetID    string    `json:"public_id"`
	IsSelected bool      `json:"isSelected"`
	Position   int       `json:"position"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewPhoto creates an unselected photo record for a stored asset
func NewPhoto(projectID, assetURL, assetID string) (*Photo, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrPhotoProjectRequired
	}
	if strings.TrimSpace(assetURL) == "" {
		return nil, ErrEmptyAssetURL
	}
	if strings.TrimSpace(assetID) == "" {
		return nil, ErrEmptyAssetID
	}

	return &Photo{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		URL:        assetURL,
		AssetID:    assetID,
		IsSelected: false,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// ArchiveName derives the file name used for this photo inside an export
// archive: the last segment of the asset id plus the extension of the URL.
func (p *Photo) ArchiveName() string {
	base := p.AssetID
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if base == "" {
		base = p.ID
	}

	ext := path.Ext(base)
	if ext == "" {
		if u, err := url.Parse(p.URL); err == nil {
			ext = strings.ToLower(path.Ext(u.Path))
		}
		if ext == "" {
			ext = ".jpg"
		}
		base += ext
	}

	return sanitizeFilename(base)
}

// sanitizeFilename removes path components and invalid characters
func sanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))

	replacer := strings.NewReplacer(
		"..", "",
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)

	return replacer.Replace(name)
}
