package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	JobStorePostgres = "postgres"
	JobStoreSQLite   = "sqlite"

	EventBusMemory = "memory"
	EventBusRedis  = "redis"

	StorageDriverFilesystem = "filesystem"
	StorageDriverS3         = "s3"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	LogLevel    string
	Port        string
	DatabaseURL string
	JobStore    string
	SQLitePath  string
	JWTSecret   string

	EventBus  string
	RedisAddr string
	RedisDB   int

	StorageDriver  string
	StoragePath    string
	StorageBaseURL string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool

	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string
	GeminiBaseURL    string

	GeoIPDBPath        string
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	StreamHeartbeat    time.Duration

	WorkerEnabled      bool
	WorkerPollInterval time.Duration
	WorkerBatchSize    int
	WorkerJobTimeout   time.Duration
	WorkerStaleAfter   time.Duration
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration

	PlatformCatalogPath string
	ModerationBlocklist []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JobStore:    strings.ToLower(getEnv("JOB_STORE", JobStorePostgres)),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/jobs.db"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		EventBus:  strings.ToLower(getEnv("EVENT_BUS", EventBusMemory)),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverFilesystem)),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       getEnv("S3_BUCKET", "genstudio"),
		S3UseSSL:       getEnvBool("S3_USE_SSL", false),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		// Zero keeps long-lived event streams open; handlers bound their own work.
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		StreamHeartbeat:  getEnvDuration("STREAM_HEARTBEAT", 25*time.Second),

		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 10*time.Second),
		WorkerBatchSize:    getEnvInt("WORKER_BATCH_SIZE", 1),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 5*time.Minute),
		WorkerStaleAfter:   getEnvDuration("WORKER_STALE_AFTER", 15*time.Minute),
		RetryMaxAttempts:   getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:     getEnvDuration("RETRY_BASE_DELAY", time.Second),

		PlatformCatalogPath: os.Getenv("PLATFORM_CATALOG_PATH"),
		ModerationBlocklist: getEnvList("MODERATION_BLOCKLIST", nil),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.JobStore {
	case JobStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case JobStoreSQLite:
	default:
		return nil, fmt.Errorf("JOB_STORE must be %q or %q, got %q", JobStorePostgres, JobStoreSQLite, cfg.JobStore)
	}

	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis:
	default:
		return nil, fmt.Errorf("EVENT_BUS must be %q or %q, got %q", EventBusMemory, EventBusRedis, cfg.EventBus)
	}

	switch cfg.StorageDriver {
	case StorageDriverFilesystem:
	case StorageDriverS3:
		if cfg.S3Endpoint == "" {
			return nil, fmt.Errorf("S3_ENDPOINT is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverFilesystem, StorageDriverS3, cfg.StorageDriver)
	}

	if cfg.WorkerBatchSize <= 0 {
		cfg.WorkerBatchSize = 1
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("1500ms", "10s") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
