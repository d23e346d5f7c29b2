package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/selectphoto/server/internal/middleware"
	"github.com/selectphoto/server/internal/services"
)

const (
	uploadField = "photos"
	// multipart parts beyond this stay on disk
	uploadMemory = 32 << 20
)

// PhotoHandler handles photo endpoints of a project
type PhotoHandler struct {
	photos          *services.PhotoService
	selection       *services.SelectionService
	maxRequestBytes int64
}

// NewPhotoHandler creates a new PhotoHandler. maxRequestBytes caps a whole
// upload request; zero disables the cap.
func NewPhotoHandler(photos *services.PhotoService, selection *services.SelectionService, maxRequestBytes int64) *PhotoHandler {
	return &PhotoHandler{
		photos:          photos,
		selection:       selection,
		maxRequestBytes: maxRequestBytes,
	}
}

// Upload stores one or more photos in a project
// @Summary Upload photos
// @Description Uploads every file of the "photos" field. Either all photos are recorded or none.
// @Tags photos
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Project ID"
// @Param photos formData file true "Photo files"
// @Success 201 {array} models.Photo
// @Failure 400 {object} models.ErrorResponse "No files, bad extension or file too large"
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse "Asset store failure"
// @Security BearerAuth
// @Router /api/projects/{id}/photos [post]
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	}

	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusBadRequest, "Upload exceeds the maximum request size.", "request_too_large")
			return
		}
		respondError(w, http.StatusBadRequest, "Request must be multipart/form-data.", "invalid_multipart")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, services.UploadFile{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	photos, err := h.photos.Upload(r.Context(), chi.URLParam(r, "id"), middleware.GetUserIDFromContext(r.Context()), files)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, photos)
}

// List returns the photos of a project. Public.
// @Summary List photos
// @Tags photos
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {array} models.Photo
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id}/photos [get]
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	photos, err := h.photos.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, photos)
}

// ToggleSelection flips a photo's selection. Public.
// @Summary Toggle photo selection
// @Tags photos
// @Produce json
// @Param id path string true "Project ID"
// @Param photoId path string true "Photo ID"
// @Success 200 {object} models.Photo
// @Failure 400 {object} models.ErrorResponse "Selection locked or limit reached"
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id}/photos/{photoId}/selection [put]
func (h *PhotoHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	photo, err := h.selection.Toggle(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "photoId"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, photo)
}

// Delete removes a photo and its asset
// @Summary Delete a photo
// @Tags photos
// @Produce json
// @Param id path string true "Project ID"
// @Param photoId path string true "Photo ID"
// @Success 200 {object} models.MessageResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/projects/{id}/photos/{photoId} [delete]
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.photos.Remove(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "photoId"), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, messageResponse("Photo deleted"))
}
