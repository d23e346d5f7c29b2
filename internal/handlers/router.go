package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/selectphoto/server/internal/auth"
	"github.com/selectphoto/server/internal/middleware"
	"github.com/selectphoto/server/internal/observability"
)

// AssetsPrefix is the URL prefix local assets are served under
const AssetsPrefix = "/assets/"

// RouterConfig wires handlers and cross-cutting concerns into the router
type RouterConfig struct {
	ServiceName    string
	Projects       *ProjectHandler
	Photos         *PhotoHandler
	Health         *HealthHandler
	Assets         *AssetHandler // nil when assets live outside this server
	JWTManager     *auth.JWTManager
	AllowedOrigins []string
	HTTPMetrics    *observability.HTTPMetrics // nil disables request metrics
	RequestLogging bool
}

// NewRouter builds the HTTP routes
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	if cfg.RequestLogging {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.TracingMiddleware(cfg.ServiceName))
	if cfg.HTTPMetrics != nil {
		r.Use(observability.MetricsMiddleware(cfg.HTTPMetrics))
	}
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", cfg.Health.HealthCheck)
	r.Get("/api/health", cfg.Health.HealthCheck)
	r.Get("/api/version", VersionHandler)

	if cfg.Assets != nil {
		r.Handle(AssetsPrefix+"*", cfg.Assets)
	}

	requireAuth := middleware.RequireAuth(cfg.JWTManager)

	r.Route("/api/projects", func(r chi.Router) {
		// Client-facing routes, reachable by anyone holding the project link
		r.Get("/{id}", cfg.Projects.Get)
		r.Put("/{id}/submit", cfg.Projects.Submit)
		r.Get("/{id}/photos", cfg.Photos.List)
		r.Put("/{id}/photos/{photoId}/selection", cfg.Photos.ToggleSelection)

		// Photographer routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/", cfg.Projects.Create)
			r.Get("/", cfg.Projects.List)
			r.Delete("/{id}", cfg.Projects.Delete)
			r.Put("/{id}/archive", cfg.Projects.Archive)
			r.Get("/{id}/download-selected", cfg.Projects.DownloadSelected)
			r.Get("/{id}/export-selected", cfg.Projects.ExportSelected)
			r.Post("/{id}/photos", cfg.Photos.Upload)
			r.Delete("/{id}/photos/{photoId}", cfg.Photos.Delete)
		})
	})

	return r
}
