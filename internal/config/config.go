package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Cache    CacheConfig
	Media    MediaConfig
	Tracking TrackingConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	APIKeyHeader string
}

type CacheConfig struct {
	DefaultTTL     time.Duration
	PermissionsTTL time.Duration
}

type MediaConfig struct {
	BasePath     string
	MaxSizeBytes int64
}

type TrackingConfig struct {
	ListKey       string
	FlushInterval time.Duration
	BatchSize     int
}

type WorkerConfig struct {
	Concurrency   int
	PruneSchedule string
	PruneKeep     int
}

func Load() (*Config, error) {
	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	tokenTTL, err := getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_TOKEN_TTL: %w", err)
	}

	cacheTTL, err := getEnvDuration("CACHE_DEFAULT_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_DEFAULT_TTL: %w", err)
	}

	permTTL, err := getEnvDuration("CACHE_PERMISSIONS_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_PERMISSIONS_TTL: %w", err)
	}

	maxUpload, err := getEnvInt("MEDIA_MAX_SIZE_BYTES", 50<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid MEDIA_MAX_SIZE_BYTES: %w", err)
	}

	flushInterval, err := getEnvDuration("TRACKING_FLUSH_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid TRACKING_FLUSH_INTERVAL: %w", err)
	}

	batchSize, err := getEnvInt("TRACKING_BATCH_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("invalid TRACKING_BATCH_SIZE: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	pruneKeep, err := getEnvInt("WORKER_PRUNE_KEEP", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_PRUNE_KEEP: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("AUTH_JWT_SECRET", ""),
			TokenTTL:     tokenTTL,
			APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),
		},
		Cache: CacheConfig{
			DefaultTTL:     cacheTTL,
			PermissionsTTL: permTTL,
		},
		Media: MediaConfig{
			BasePath:     getEnv("MEDIA_BASE_PATH", "uploads"),
			MaxSizeBytes: int64(maxUpload),
		},
		Tracking: TrackingConfig{
			ListKey:       getEnv("TRACKING_LIST_KEY", "tracking:pageviews"),
			FlushInterval: flushInterval,
			BatchSize:     batchSize,
		},
		Worker: WorkerConfig{
			Concurrency:   concurrency,
			PruneSchedule: getEnv("WORKER_PRUNE_SCHEDULE", "@daily"),
			PruneKeep:     pruneKeep,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
