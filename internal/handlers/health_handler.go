package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/selectphoto/server/internal/models"
	"github.com/selectphoto/server/internal/observability"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthCheck returns the server health status
// @Summary Health check
// @Description Returns the current health status of the server and its database
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse "Server is healthy"
// @Failure 503 {object} models.HealthResponse "Database unreachable"
// @Router /api/health [get]
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			observability.WithContext(r.Context()).Warn("health check failed", "error", err)
			response.Status = "unhealthy"
			respondJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	respondJSON(w, http.StatusOK, response)
}
