package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selectphoto/server/internal/auth"
	"github.com/selectphoto/server/internal/locking"
	"github.com/selectphoto/server/internal/models"
	"github.com/selectphoto/server/internal/repository"
	"github.com/selectphoto/server/internal/services"
)

const (
	testOwner    = "owner-1"
	testStranger = "owner-2"
)

type testServer struct {
	handler http.Handler
	jwt     *auth.JWTManager
	store   *repository.SQLStore
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := repository.NewSQLStore(db, repository.DialectSQLite)

	assets, err := services.NewLocalAssetStore(t.TempDir(), "http://localhost:8080/assets")
	require.NoError(t, err)

	locker := locking.NewKeyedMutex()
	access := services.OwnerGateway{}
	policy := services.NewUploadPolicy(nil, 1)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	projects := services.NewProjectService(store, assets, locker, access, nil, services.ProjectServiceOptions{AssetWorkers: 2})
	photos := services.NewPhotoService(store, assets, locker, access, policy, nil, 2)
	selection := services.NewSelectionService(store, locker, nil)
	exports := services.NewExportService(store, assets, access, nil)

	router := NewRouter(RouterConfig{
		ServiceName:    "selectphoto-test",
		Projects:       NewProjectHandler(projects, exports),
		Photos:         NewPhotoHandler(photos, selection, 10<<20),
		Health:         NewHealthHandler(db),
		Assets:         NewAssetHandler(AssetsPrefix, assets.Root()),
		JWTManager:     jwtManager,
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	return &testServer{handler: router, jwt: jwtManager, store: store}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.jwt.Generate(userID, userID+"@example.com")
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, userID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path, userID string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return s.do(t, method, path, userID, body, "application/json")
}

func (s *testServer) createProject(t *testing.T, maxSelection int) *models.Project {
	t.Helper()

	rec := s.doJSON(t, http.MethodPost, "/api/projects", testOwner, map[string]interface{}{
		"title":        "Wedding",
		"clientName":   "Alice",
		"maxSelection": maxSelection,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var project models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
	return &project
}

func multipartBody(t *testing.T, files map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile(uploadField, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) uploadPhotos(t *testing.T, projectID string, n int) []*models.Photo {
	t.Helper()

	files := make(map[string]string, n)
	for i := 0; i < n; i++ {
		files[fmt.Sprintf("img-%d.jpg", i)] = fmt.Sprintf("jpeg bytes %d", i)
	}
	body, contentType := multipartBody(t, files)

	rec := s.do(t, http.MethodPost, "/api/projects/"+projectID+"/photos", testOwner, body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var photos []*models.Photo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &photos))
	require.Len(t, photos, n)
	return photos
}

func (s *testServer) toggle(t *testing.T, projectID, photoID string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPut, "/api/projects/"+projectID+"/photos/"+photoID+"/selection", "", nil, "")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthHandler(t *testing.T) {
	s := setupTestServer(t)

	for _, path := range []string{"/health", "/api/health"} {
		rec := s.do(t, http.MethodGet, path, "", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp models.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
	}
}

func TestVersionHandler(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/version", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, Version, resp.Version)
}

func TestProjectHandler(t *testing.T) {
	t.Run("create requires a token", func(t *testing.T) {
		s := setupTestServer(t)

		rec := s.doJSON(t, http.MethodPost, "/api/projects", "", map[string]string{"title": "Wedding", "clientName": "Alice"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create rejects invalid input", func(t *testing.T) {
		s := setupTestServer(t)

		rec := s.doJSON(t, http.MethodPost, "/api/projects", testOwner, map[string]interface{}{
			"title": "Wedding", "clientName": "Alice", "maxSelection": 0,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_max_selection", decodeError(t, rec).Code)

		rec = s.do(t, http.MethodPost, "/api/projects", testOwner, strings.NewReader("{"), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create, get and list", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 3)

		assert.Equal(t, testOwner, project.UserID)
		assert.Equal(t, 3, project.MaxSelection)
		assert.Equal(t, models.StatusActive, project.Status)

		rec := s.do(t, http.MethodGet, "/api/projects/"+project.ID, "", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/projects", testOwner, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var projects []models.Project
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projects))
		require.Len(t, projects, 1)
		assert.Equal(t, project.ID, projects[0].ID)

		rec = s.do(t, http.MethodGet, "/api/projects", testStranger, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("get missing project", func(t *testing.T) {
		s := setupTestServer(t)

		rec := s.do(t, http.MethodGet, "/api/projects/missing", "", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "project_not_found", decodeError(t, rec).Code)
	})

	t.Run("submit then toggle is locked", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 3)
		photos := s.uploadPhotos(t, project.ID, 1)

		rec := s.do(t, http.MethodPut, "/api/projects/"+project.ID+"/submit", "", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp models.SubmitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Selection submitted successfully", resp.Message)
		assert.Equal(t, models.StatusSubmitted, resp.Project.Status)

		rec = s.do(t, http.MethodPut, "/api/projects/"+project.ID+"/submit", "", nil, "")
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Selection already submitted", resp.Message)

		rec = s.toggle(t, project.ID, photos[0].ID)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "selection_locked", decodeError(t, rec).Code)
	})

	t.Run("archive is owner only", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 3)

		rec := s.do(t, http.MethodPut, "/api/projects/"+project.ID+"/archive", testStranger, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = s.do(t, http.MethodPut, "/api/projects/"+project.ID+"/archive", testOwner, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var archived models.Project
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &archived))
		assert.Equal(t, models.StatusArchived, archived.Status)

		rec = s.do(t, http.MethodPut, "/api/projects/"+project.ID+"/submit", "", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete cascades and rejects strangers", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 3)
		photos := s.uploadPhotos(t, project.ID, 2)

		rec := s.do(t, http.MethodDelete, "/api/projects/"+project.ID, testStranger, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = s.do(t, http.MethodDelete, "/api/projects/"+project.ID, testOwner, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/projects/"+project.ID, "", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		for _, photo := range photos {
			rec = s.do(t, http.MethodGet, "/assets/"+photo.AssetID, "", nil, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
		}
	})
}

func TestPhotoHandler(t *testing.T) {
	t.Run("upload stores and serves assets", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 3)
		photos := s.uploadPhotos(t, project.ID, 1)

		photo := photos[0]
		assert.Equal(t, project.ID, photo.ProjectID)
		assert.False(t, photo.IsSelected)
		assert.True(t, strings.HasPrefix(photo.AssetID, "select-photo/"+project.ID+"/"))
		assert.Equal(t, "http://localhost:8080/assets/"+photo.AssetID, photo.URL)

		rec := s.do(t, http.MethodGet, "/assets/"+photo.AssetID, "", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "jpeg bytes 0", rec.Body.String())

		rec = s.do(t, http.MethodGet, "/assets/select-photo/"+project.ID+"/", "", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("upload validates files", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 3)

		body, contentType := multipartBody(t, map[string]string{"notes.txt": "text"})
		rec := s.do(t, http.MethodPost, "/api/projects/"+project.ID+"/photos", testOwner, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_extension", decodeError(t, rec).Code)

		body, contentType = multipartBody(t, map[string]string{})
		rec = s.do(t, http.MethodPost, "/api/projects/"+project.ID+"/photos", testOwner, body, contentType)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "no_files", decodeError(t, rec).Code)

		rec = s.do(t, http.MethodPost, "/api/projects/"+project.ID+"/photos", testOwner, strings.NewReader("x"), "text/plain")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/projects/"+project.ID+"/photos", "", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("upload requires the owner", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 3)

		body, contentType := multipartBody(t, map[string]string{"a.jpg": "a"})
		rec := s.do(t, http.MethodPost, "/api/projects/"+project.ID+"/photos", testStranger, body, contentType)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("toggle enforces the cap", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 2)
		photos := s.uploadPhotos(t, project.ID, 3)

		for _, photo := range photos[:2] {
			rec := s.toggle(t, project.ID, photo.ID)
			require.Equal(t, http.StatusOK, rec.Code)
			var toggled models.Photo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
			assert.True(t, toggled.IsSelected)
		}

		rec := s.toggle(t, project.ID, photos[2].ID)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "selection_limit_reached", decodeError(t, rec).Code)

		rec = s.toggle(t, project.ID, photos[0].ID)
		require.Equal(t, http.StatusOK, rec.Code)
		var toggled models.Photo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
		assert.False(t, toggled.IsSelected)
	})

	t.Run("toggle unknown photo", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 2)

		rec := s.toggle(t, project.ID, "missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete photo", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 2)
		photos := s.uploadPhotos(t, project.ID, 2)

		rec := s.do(t, http.MethodDelete, "/api/projects/"+project.ID+"/photos/"+photos[0].ID, testOwner, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/projects/"+project.ID+"/photos", "", nil, "")
		var remaining []models.Photo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &remaining))
		require.Len(t, remaining, 1)
		assert.Equal(t, photos[1].ID, remaining[0].ID)
	})
}

func TestExportHandlers(t *testing.T) {
	t.Run("download with nothing selected", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 2)
		s.uploadPhotos(t, project.ID, 1)

		rec := s.do(t, http.MethodGet, "/api/projects/"+project.ID+"/download-selected", testOwner, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "empty_selection", decodeError(t, rec).Code)
	})

	t.Run("download streams a zip of the selection", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 3)
		photos := s.uploadPhotos(t, project.ID, 2)
		require.Equal(t, http.StatusOK, s.toggle(t, project.ID, photos[1].ID).Code)

		rec := s.do(t, http.MethodGet, "/api/projects/"+project.ID+"/download-selected", testStranger, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/projects/"+project.ID+"/download-selected", testOwner, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

		zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
		require.NoError(t, err)
		require.Len(t, zr.File, 1)

		f, err := zr.File[0].Open()
		require.NoError(t, err)
		defer f.Close()
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Contains(t, []string{"jpeg bytes 0", "jpeg bytes 1"}, string(data))
	})

	t.Run("csv export lists the selection", func(t *testing.T) {
		s := setupTestServer(t)
		project := s.createProject(t, 3)
		photos := s.uploadPhotos(t, project.ID, 2)
		require.Equal(t, http.StatusOK, s.toggle(t, project.ID, photos[0].ID).Code)

		rec := s.do(t, http.MethodGet, "/api/projects/"+project.ID+"/export-selected", testOwner, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))

		records, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, []string{"Filename", "URL"}, records[0])
		assert.Equal(t, []string{photos[0].AssetID, photos[0].URL}, records[1])
	})
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(models.KindLimitExceeded))
	assert.Equal(t, http.StatusBadRequest, statusForKind(models.KindLocked))
	assert.Equal(t, http.StatusBadRequest, statusForKind(models.KindEmptySelection))
	assert.Equal(t, http.StatusNotFound, statusForKind(models.KindNotFound))
	assert.Equal(t, http.StatusUnauthorized, statusForKind(models.KindUnauthorized))
	assert.Equal(t, http.StatusBadGateway, statusForKind(models.KindUpstream))
	assert.Equal(t, http.StatusConflict, statusForKind(models.KindConflict))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(""))
}
