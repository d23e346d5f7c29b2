package handlers

import "net/http"

// Build information, set with -ldflags "-X github.com/selectphoto/server/internal/handlers.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// VersionResponse describes the running build
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
}

// VersionHandler reports the running build
// @Summary Server version
// @Tags health
// @Produce json
// @Success 200 {object} handlers.VersionResponse
// @Router /api/version [get]
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, VersionResponse{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
	})
}
