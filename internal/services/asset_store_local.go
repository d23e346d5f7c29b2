package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/selectphoto/server/internal/models"
)

// LocalAssetStore keeps assets on the local filesystem and serves them
// under a public URL prefix
type LocalAssetStore struct {
	basePath  string
	publicURL string
}

var _ AssetStore = (*LocalAssetStore)(nil)

// NewLocalAssetStore creates a LocalAssetStore rooted at basePath
func NewLocalAssetStore(basePath, publicURL string) (*LocalAssetStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, err
	}

	return &LocalAssetStore{
		basePath:  absPath,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Root returns the directory assets are stored in
func (s *LocalAssetStore) Root() string {
	return s.basePath
}

// Upload writes the asset to disk
func (s *LocalAssetStore) Upload(ctx context.Context, assetID string, r io.Reader, size int64) (*Asset, error) {
	fullPath, err := s.fullPath(assetID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(file, contextReader{ctx: ctx, r: r}); err != nil {
		file.Close()
		os.Remove(fullPath)
		return nil, err
	}
	if err := file.Close(); err != nil {
		os.Remove(fullPath)
		return nil, err
	}

	return &Asset{ID: assetID, URL: s.publicURL + "/" + assetID}, nil
}

// Delete removes an asset. A missing file counts as deleted.
func (s *LocalAssetStore) Delete(ctx context.Context, assetID string) error {
	fullPath, err := s.fullPath(assetID)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Open returns a reader over an asset's bytes
func (s *LocalAssetStore) Open(ctx context.Context, assetID string) (io.ReadCloser, error) {
	fullPath, err := s.fullPath(assetID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// fullPath maps an asset id to a path inside basePath
func (s *LocalAssetStore) fullPath(assetID string) (string, error) {
	if strings.TrimSpace(assetID) == "" {
		return "", models.ErrEmptyAssetID
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(assetID))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(absPath, s.basePath+string(os.PathSeparator)) {
		return "", models.ErrPathTraversal
	}

	return absPath, nil
}

// contextReader stops a copy once its context is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
