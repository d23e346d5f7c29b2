package handlers

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/selectphoto/server/internal/middleware"
	"github.com/selectphoto/server/internal/models"
	"github.com/selectphoto/server/internal/observability"
	"github.com/selectphoto/server/internal/services"
)

// ProjectHandler handles project endpoints
type ProjectHandler struct {
	projects *services.ProjectService
	exports  *services.ExportService
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(projects *services.ProjectService, exports *services.ExportService) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		exports:  exports,
	}
}

// Create handles project creation
// @Summary Create a project
// @Tags projects
// @Accept json
// @Produce json
// @Param request body models.CreateProjectRequest true "Project details"
// @Success 201 {object} models.Project
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/projects [post]
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.", "invalid_body")
		return
	}

	project, err := h.projects.Create(r.Context(), middleware.GetUserIDFromContext(r.Context()), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	observability.WithContext(r.Context()).Info("project created",
		"project_id", project.ID,
		"owner_email", middleware.GetEmailFromContext(r.Context()),
	)

	respondJSON(w, http.StatusCreated, project)
}

// List returns the caller's projects
// @Summary List own projects
// @Description Non-archived projects of the authenticated photographer, newest first
// @Tags projects
// @Produce json
// @Success 200 {array} models.Project
// @Security BearerAuth
// @Router /api/projects [get]
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListForOwner(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, projects)
}

// Get returns a project's metadata. Public.
// @Summary Get a project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} models.Project
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id} [get]
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// Delete removes a project, its photos and their assets
// @Summary Delete a project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} models.MessageResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse "Asset store failure, project kept"
// @Security BearerAuth
// @Router /api/projects/{id} [delete]
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.projects.Delete(r.Context(), id, middleware.GetUserIDFromContext(r.Context())); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, messageResponse("Project deleted"))
}

// Submit locks the client's selection. Public.
// @Summary Submit a selection
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} models.SubmitResponse
// @Failure 400 {object} models.ErrorResponse "Project archived"
// @Failure 404 {object} models.ErrorResponse
// @Router /api/projects/{id}/submit [put]
func (h *ProjectHandler) Submit(w http.ResponseWriter, r *http.Request) {
	project, changed, err := h.projects.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	message := "Selection submitted successfully"
	if !changed {
		message = "Selection already submitted"
	}
	respondJSON(w, http.StatusOK, models.SubmitResponse{Message: message, Project: project})
}

// Archive puts a project away
// @Summary Archive a project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} models.Project
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/projects/{id}/archive [put]
func (h *ProjectHandler) Archive(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.Archive(r.Context(), chi.URLParam(r, "id"), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, project)
}

// DownloadSelected streams the selected photos as a ZIP archive
// @Summary Download selected photos
// @Tags projects
// @Produce application/zip
// @Param id path string true "Project ID"
// @Success 200 {file} binary
// @Failure 400 {object} models.ErrorResponse "Nothing selected"
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/projects/{id}/download-selected [get]
func (h *ProjectHandler) DownloadSelected(w http.ResponseWriter, r *http.Request) {
	archive, err := h.exports.OpenArchive(r.Context(), chi.URLParam(r, "id"), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(archive.Filename))
	w.WriteHeader(http.StatusOK)
	observability.WithContext(r.Context()).Info("streaming archive",
		"project_id", chi.URLParam(r, "id"),
		"photos", archive.Len(),
	)

	// Headers are out; a failure here can only cut the stream short.
	if err := archive.Stream(r.Context(), w); err != nil {
		observability.WithContext(r.Context()).Warn("archive stream aborted",
			"project_id", chi.URLParam(r, "id"),
			"error", err,
		)
	}
}

// ExportSelected returns the selected photos as CSV
// @Summary Export selected photos as CSV
// @Tags projects
// @Produce text/csv
// @Param id path string true "Project ID"
// @Success 200 {file} binary
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/projects/{id}/export-selected [get]
func (h *ProjectHandler) ExportSelected(w http.ResponseWriter, r *http.Request) {
	project, rows, err := h.exports.SelectedRows(r.Context(), chi.URLParam(r, "id"), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(project.CSVFilename()))
	w.WriteHeader(http.StatusOK)

	if err := services.WriteCSV(w, rows); err != nil {
		observability.WithContext(r.Context()).Warn("csv export aborted", "project_id", project.ID, "error", err)
	}
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
