package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/selectphoto/server/internal/locking"
	"github.com/selectphoto/server/internal/models"
	"github.com/selectphoto/server/internal/repository"
)

const (
	ownerID    = "owner-1"
	strangerID = "someone-else"
)

// memAssetStore is an in-memory AssetStore with failure injection
type memAssetStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failUpload func(assetID string) bool
	failDelete func(assetID string) bool
	onUpload   func()
	onDelete   func(assetID string)
}

func newMemAssetStore() *memAssetStore {
	return &memAssetStore{objects: map[string][]byte{}}
}

func (m *memAssetStore) Upload(ctx context.Context, assetID string, r io.Reader, size int64) (*Asset, error) {
	if m.onUpload != nil {
		m.onUpload()
	}
	if m.failUpload != nil && m.failUpload(assetID) {
		return nil, errors.New("upload refused")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[assetID] = data
	return &Asset{ID: assetID, URL: "https://assets.example.com/" + assetID}, nil
}

func (m *memAssetStore) Delete(ctx context.Context, assetID string) error {
	if m.onDelete != nil {
		m.onDelete(assetID)
	}
	if m.failDelete != nil && m.failDelete(assetID) {
		return errors.New("delete refused")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, assetID)
	return nil
}

func (m *memAssetStore) Open(ctx context.Context, assetID string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[assetID]
	if !ok {
		return nil, models.ErrAssetNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memAssetStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *memAssetStore) has(assetID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[assetID]
	return ok
}

type testEnv struct {
	store     *repository.SQLStore
	assets    *memAssetStore
	locker    locking.Locker
	projects  *ProjectService
	photos    *PhotoService
	selection *SelectionService
	exports   *ExportService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := repository.NewSQLStore(db, repository.DialectSQLite)
	assets := newMemAssetStore()
	locker := locking.NewKeyedMutex()
	access := OwnerGateway{}

	return &testEnv{
		store:     store,
		assets:    assets,
		locker:    locker,
		projects:  NewProjectService(store, assets, locker, access, nil, ProjectServiceOptions{AssetWorkers: 4}),
		photos:    NewPhotoService(store, assets, locker, access, NewUploadPolicy(nil, 5), nil, 4),
		selection: NewSelectionService(store, locker, nil),
		exports:   NewExportService(store, assets, access, nil),
	}
}

// useRedisLocker rebuilds the locking services on a RedisLocker backed by
// miniredis, so tests can expire leases with FastForward.
func (e *testEnv) useRedisLocker(t *testing.T, ttl time.Duration) *miniredis.Miniredis {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	access := OwnerGateway{}
	e.locker = locking.NewRedisLocker(client, ttl)
	e.projects = NewProjectService(e.store, e.assets, e.locker, access, nil, ProjectServiceOptions{AssetWorkers: 4})
	e.photos = NewPhotoService(e.store, e.assets, e.locker, access, NewUploadPolicy(nil, 5), nil, 4)
	e.selection = NewSelectionService(e.store, e.locker, nil)
	return mr
}

func (e *testEnv) createProject(t *testing.T, maxSelection int) *models.Project {
	t.Helper()

	project, err := e.projects.Create(context.Background(), ownerID, &models.CreateProjectRequest{
		Title:        "Summer Wedding",
		ClientName:   "Alice",
		MaxSelection: &maxSelection,
	})
	require.NoError(t, err)
	return project
}

func uploadFile(name, content string) UploadFile {
	return UploadFile{
		Filename: name,
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func (e *testEnv) uploadPhotos(t *testing.T, projectID string, n int) []*models.Photo {
	t.Helper()

	files := make([]UploadFile, n)
	for i := range files {
		files[i] = uploadFile(fmt.Sprintf("IMG_%04d.jpg", i+1), fmt.Sprintf("image-%d", i+1))
	}

	photos, err := e.photos.Upload(context.Background(), projectID, ownerID, files)
	require.NoError(t, err)
	require.Len(t, photos, n)
	return photos
}

func (e *testEnv) selectedCount(t *testing.T, projectID string) int {
	t.Helper()

	photos, err := e.store.Photos().GetByProjectID(context.Background(), projectID)
	require.NoError(t, err)
	n := 0
	for _, p := range photos {
		if p.IsSelected {
			n++
		}
	}
	return n
}
