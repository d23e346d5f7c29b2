package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Asset backends
const (
	AssetBackendLocal = "local"
	AssetBackendS3    = "s3"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string    `json:"serverAddress" env:"SERVER_ADDRESS"`
	DatabasePath  string    `json:"databasePath" env:"DATABASE_PATH"`
	DatabaseURL   string    `json:"databaseUrl" env:"DATABASE_URL"`
	LogLevel      string    `json:"logLevel" env:"LOG_LEVEL"`
	Assets        Assets    `json:"assets"`
	Selection     Selection `json:"selection"`
	Security      Security  `json:"security"`
	Locking       Locking   `json:"locking"`
	Telemetry     Telemetry `json:"telemetry"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Assets configures where photo files go
type Assets struct {
	Backend           string   `json:"backend" env:"ASSET_BACKEND"`
	BasePath          string   `json:"basePath" env:"ASSET_STORAGE_PATH"`
	PublicURL         string   `json:"publicUrl" env:"ASSET_PUBLIC_URL"`
	MaxFileSizeMB     int64    `json:"maxFileSizeMB" env:"MAX_FILE_SIZE_MB"`
	AllowedExtensions []string `json:"allowedExtensions" env:"ALLOWED_EXTENSIONS" envSeparator:","`
	UploadWorkers     int      `json:"uploadWorkers" env:"UPLOAD_WORKERS"`
	S3                S3       `json:"s3"`
}

// S3 configures the S3-compatible asset backend
type S3 struct {
	Bucket        string `json:"bucket" env:"S3_BUCKET"`
	Region        string `json:"region" env:"S3_REGION"`
	Endpoint      string `json:"endpoint" env:"S3_ENDPOINT"`
	PublicBaseURL string `json:"publicBaseUrl" env:"S3_PUBLIC_BASE_URL"`
	UsePathStyle  bool   `json:"usePathStyle" env:"S3_USE_PATH_STYLE"`
}

// Selection holds project defaults
type Selection struct {
	DefaultMaxSelection int `json:"defaultMaxSelection" env:"DEFAULT_MAX_SELECTION"`
}

// Security configuration
type Security struct {
	JWTSecret      string   `json:"jwtSecret" env:"JWT_SECRET"`
	TokenTTLHours  int      `json:"tokenTtlHours" env:"JWT_TTL_HOURS"`
	AllowedOrigins []string `json:"allowedOrigins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Locking configures the per-project lock. Without a Redis URL the lock
// is held in process.
type Locking struct {
	RedisURL   string `json:"redisUrl" env:"REDIS_URL"`
	TTLSeconds int    `json:"ttlSeconds" env:"LOCK_TTL_SECONDS"`
}

// TTL returns the lock lease as a duration
func (l Locking) TTL() time.Duration {
	return time.Duration(l.TTLSeconds) * time.Second
}

// Telemetry configures OpenTelemetry export
type Telemetry struct {
	Enabled     bool    `json:"enabled" env:"OTEL_ENABLED"`
	Endpoint    string  `json:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `json:"serviceName" env:"OTEL_SERVICE_NAME"`
	Environment string  `json:"environment" env:"ENVIRONMENT"`
	SampleRatio float64 `json:"sampleRatio" env:"OTEL_SAMPLE_RATIO"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "selectphoto.db",
		LogLevel:      "info",
		Assets: Assets{
			Backend:       AssetBackendLocal,
			BasePath:      "./assets",
			PublicURL:     "http://localhost:5000/assets",
			MaxFileSizeMB: 25,
			AllowedExtensions: []string{
				".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif",
			},
			UploadWorkers: 4,
			S3: S3{
				Region: "us-east-1",
			},
		},
		Selection: Selection{
			DefaultMaxSelection: 50,
		},
		Security: Security{
			TokenTTLHours:  24,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Locking: Locking{
			TTLSeconds: 60,
		},
		Telemetry: Telemetry{
			Endpoint:    "localhost:4317",
			ServiceName: "selectphoto-server",
			Environment: "development",
			SampleRatio: 1,
		},
	}
}

// Load builds the configuration from defaults, the JSON file at CONFIG_PATH
// (config.json by default), a .env file and the environment, in that order.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", configPath, err)
	}

	// Variables already set in the environment win over .env entries
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ServerAddress) == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if !c.UsePostgres() && strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database path or database URL is required"))
	}

	switch c.Assets.Backend {
	case AssetBackendLocal:
		if strings.TrimSpace(c.Assets.BasePath) == "" {
			errs = append(errs, errors.New("asset storage path is required for the local backend"))
		}
		if strings.TrimSpace(c.Assets.PublicURL) == "" {
			errs = append(errs, errors.New("asset public URL is required for the local backend"))
		}
	case AssetBackendS3:
		if strings.TrimSpace(c.Assets.S3.Bucket) == "" {
			errs = append(errs, errors.New("S3 bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown asset backend %q", c.Assets.Backend))
	}

	if c.Assets.MaxFileSizeMB <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}
	if c.Assets.UploadWorkers < 1 {
		errs = append(errs, errors.New("upload workers must be at least 1"))
	}
	if c.Selection.DefaultMaxSelection < 1 {
		errs = append(errs, errors.New("default max selection must be positive"))
	}
	if len(c.Security.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT secret must be at least 32 characters"))
	}
	if c.Security.TokenTTLHours < 1 {
		errs = append(errs, errors.New("token TTL must be at least one hour"))
	}
	if c.Locking.TTLSeconds < 1 {
		errs = append(errs, errors.New("lock TTL must be positive"))
	}

	return errors.Join(errs...)
}
