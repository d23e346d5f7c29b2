package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/selectphoto/server/internal/auth"
	"github.com/selectphoto/server/internal/config"
	"github.com/selectphoto/server/internal/handlers"
	"github.com/selectphoto/server/internal/locking"
	"github.com/selectphoto/server/internal/observability"
	"github.com/selectphoto/server/internal/repository"
	"github.com/selectphoto/server/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.Setup(cfg.Telemetry.ServiceName, cfg.LogLevel)

	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: handlers.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	// Initialize database and store
	var db *sql.DB
	var store *repository.SQLStore
	if cfg.UsePostgres() {
		logger.Info("using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
		store = repository.NewSQLStore(db, repository.DialectPostgres)
	} else {
		logger.Info("using SQLite database", "path", cfg.DatabasePath)
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite database: %v", err)
		}
		store = repository.NewSQLStore(db, repository.DialectSQLite)
	}
	defer store.Close()
	logger.Info("database ready", "dialect", store.Dialect())

	// Asset store
	var assets services.AssetStore
	var assetHandler *handlers.AssetHandler
	switch cfg.Assets.Backend {
	case config.AssetBackendS3:
		s3Store, err := services.NewS3AssetStore(ctx, services.S3Options{
			Bucket:        cfg.Assets.S3.Bucket,
			Region:        cfg.Assets.S3.Region,
			Endpoint:      cfg.Assets.S3.Endpoint,
			PublicBaseURL: cfg.Assets.S3.PublicBaseURL,
			UsePathStyle:  cfg.Assets.S3.UsePathStyle,
		})
		if err != nil {
			log.Fatalf("Failed to initialize S3 asset store: %v", err)
		}
		assets = s3Store
		logger.Info("storing assets in S3", "bucket", cfg.Assets.S3.Bucket)
	default:
		localStore, err := services.NewLocalAssetStore(cfg.Assets.BasePath, cfg.Assets.PublicURL)
		if err != nil {
			log.Fatalf("Failed to initialize asset storage: %v", err)
		}
		assets = localStore
		assetHandler = handlers.NewAssetHandler(handlers.AssetsPrefix, localStore.Root())
		logger.Info("storing assets on disk", "path", localStore.Root(), "public_url", cfg.Assets.PublicURL)
	}

	// Project lock
	var locker locking.Locker = locking.NewKeyedMutex()
	if cfg.Locking.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Locking.RedisURL)
		if err != nil {
			log.Fatalf("Invalid Redis URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}

		locker = locking.NewRedisLocker(client, cfg.Locking.TTL())
		logger.Info("using Redis project lock", "addr", opts.Addr)
	}

	selectionMetrics, err := observability.NewSelectionMetrics()
	if err != nil {
		log.Fatalf("Failed to create selection metrics: %v", err)
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Fatalf("Failed to create HTTP metrics: %v", err)
	}

	// Initialize services
	access := services.OwnerGateway{}
	policy := services.NewUploadPolicy(cfg.Assets.AllowedExtensions, cfg.Assets.MaxFileSizeMB)

	projectService := services.NewProjectService(store, assets, locker, access, selectionMetrics, services.ProjectServiceOptions{
		DefaultMaxSelection: cfg.Selection.DefaultMaxSelection,
		AssetWorkers:        cfg.Assets.UploadWorkers,
	})
	photoService := services.NewPhotoService(store, assets, locker, access, policy, selectionMetrics, cfg.Assets.UploadWorkers)
	selectionService := services.NewSelectionService(store, locker, selectionMetrics)
	exportService := services.NewExportService(store, assets, access, selectionMetrics)

	jwtManager := auth.NewJWTManager(cfg.Security.JWTSecret, time.Duration(cfg.Security.TokenTTLHours)*time.Hour)

	// A single request may carry many photos
	maxUploadBytes := policy.MaxFileSizeBytes()*100 + 1<<20

	router := handlers.NewRouter(handlers.RouterConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Projects:       handlers.NewProjectHandler(projectService, exportService),
		Photos:         handlers.NewPhotoHandler(photoService, selectionService, maxUploadBytes),
		Health:         handlers.NewHealthHandler(db),
		Assets:         assetHandler,
		JWTManager:     jwtManager,
		AllowedOrigins: cfg.Security.AllowedOrigins,
		HTTPMetrics:    httpMetrics,
		RequestLogging: strings.EqualFold(cfg.LogLevel, "debug"),
	})

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Minute,  // multi-file uploads
		WriteTimeout: 10 * time.Minute, // ZIP downloads stream for a while
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("SelectPhoto server starting",
			"addr", cfg.ServerAddress,
			"version", handlers.Version,
			"asset_backend", cfg.Assets.Backend,
			"max_file_size_mb", cfg.Assets.MaxFileSizeMB,
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
