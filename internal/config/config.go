// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"posterforge/internal/pkg/logger"
)

// Drivers for the job store and the wake queue.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	QueueMemory = "memory"
	QueueRedis  = "redis"

	RendererExec = "exec"
	RendererHTTP = "http"
)

// Config holds every runtime knob for the API and the worker.
type Config struct {
	HTTPPort string

	LogLevel  string
	LogFormat string
	LogSource bool

	StoreDriver string
	DatabaseURL string

	QueueDriver string
	RedisAddr   string
	QueueName   string

	WorkerCount   int
	RenderTimeout time.Duration

	RendererMode    string
	RendererScript  string
	RendererWorkdir string
	RendererBaseURL string

	StorageProvider  string
	StorageLocalRoot string
	ScratchDir       string
	CleanupScratch   bool

	GDriveClientID     string
	GDriveClientSecret string
	GDriveRefreshToken string
	GDriveFolderID     string

	RetentionEnabled  bool
	RetentionTTL      time.Duration
	RetentionSchedule string

	CORSAllowedOrigins []string
}

// Load reads .env files (if present) and the process environment.
func Load(env Env) (Config, error) {
	// Missing .env files are fine; the environment wins either way.
	_ = godotenv.Load(".env", ".env.local")

	c := Config{
		HTTPPort: env.Get("HTTP_PORT", "8080"),

		LogLevel:  env.Get("LOG_LEVEL", "info"),
		LogFormat: env.Get("LOG_FORMAT", "json"),
		LogSource: env.Get("LOG_SOURCE", "false") == "true",

		StoreDriver: env.Get("STORE_DRIVER", StoreMemory),
		DatabaseURL: env.Get("DATABASE_URL", ""),

		QueueDriver: env.Get("QUEUE_DRIVER", QueueMemory),
		RedisAddr:   env.Get("REDIS_ADDR", ""),
		QueueName:   env.Get("JOB_QUEUE_NAME", "posterforge:jobs"),

		RendererMode:    env.Get("RENDERER_MODE", RendererExec),
		RendererScript:  env.Get("RENDERER_SCRIPT", "./create_map_poster.py"),
		RendererWorkdir: env.Get("RENDERER_WORKDIR", "."),
		RendererBaseURL: env.Get("RENDERER_HTTP_BASEURL", ""),

		StorageProvider:  env.Get("STORAGE_PROVIDER", "localfs"),
		StorageLocalRoot: env.Get("STORAGE_LOCAL_ROOT", "./data"),
		ScratchDir:       env.Get("SCRATCH_DIR", "./scratch"),
		CleanupScratch:   env.Get("CLEANUP_SCRATCH", "true") == "true",

		GDriveClientID:     env.Get("GDRIVE_CLIENT_ID", ""),
		GDriveClientSecret: env.Get("GDRIVE_CLIENT_SECRET", ""),
		GDriveRefreshToken: env.Get("GDRIVE_REFRESH_TOKEN", ""),
		GDriveFolderID:     env.Get("GDRIVE_FOLDER_ID", ""),

		RetentionEnabled:  env.Get("RETENTION_ENABLED", "false") == "true",
		RetentionSchedule: env.Get("RETENTION_SCHEDULE", "@every 15m"),

		CORSAllowedOrigins: splitCSV(env.Get("CORS_ALLOWED_ORIGINS", "")),
	}

	var err error
	if c.WorkerCount, err = parseInt(env.Get("WORKER_COUNT", "2"), "WORKER_COUNT"); err != nil {
		return Config{}, err
	}
	if c.WorkerCount < 1 {
		return Config{}, fmt.Errorf("WORKER_COUNT must be >= 1, got %d", c.WorkerCount)
	}
	if c.RenderTimeout, err = parseDuration(env.Get("RENDER_TIMEOUT", "3m"), "RENDER_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if c.RetentionTTL, err = parseDuration(env.Get("RETENTION_TTL", "24h"), "RETENTION_TTL"); err != nil {
		return Config{}, err
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER: %s", c.StoreDriver)
	}

	switch c.QueueDriver {
	case QueueMemory:
	case QueueRedis:
		if c.RedisAddr == "" {
			return Config{}, fmt.Errorf("REDIS_ADDR is required when QUEUE_DRIVER=redis")
		}
	default:
		return Config{}, fmt.Errorf("unknown QUEUE_DRIVER: %s", c.QueueDriver)
	}

	switch c.RendererMode {
	case RendererExec:
	case RendererHTTP:
		if c.RendererBaseURL == "" {
			return Config{}, fmt.Errorf("RENDERER_HTTP_BASEURL is required when RENDERER_MODE=http")
		}
	default:
		return Config{}, fmt.Errorf("unknown RENDERER_MODE: %s", c.RendererMode)
	}

	return c, nil
}

// MustLoad loads configuration or exits via the logger.
func MustLoad(log *logger.Logger) Config {
	c, err := Load(OSEnv())
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}
	return c
}

// LoggerConfig builds the logger configuration for a named service.
func (c Config) LoggerConfig(serviceName string) logger.Config {
	return logger.Config{
		Level:       c.LogLevel,
		Format:      c.LogFormat,
		AddSource:   c.LogSource,
		ServiceName: serviceName,
	}
}

func parseInt(raw, key string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseDuration(raw, key string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
