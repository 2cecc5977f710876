package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the router core.
type Config struct {
	HTTPPort    string
	Vault       VaultConfig
	Verifier    VerifierConfig
	Catalog     CatalogConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Usage       UsageConfig
	LoggingSink LoggingSinkConfig
}

// VaultConfig holds settings for the external secret store.
type VaultConfig struct {
	Address   string
	Token     string
	UnsealKey string // used only when the store reports a sealed state
	Timeout   time.Duration
}

// VerifierConfig holds settings for the API key verification backend.
type VerifierConfig struct {
	BackendURL string
	Timeout    time.Duration
}

// CatalogConfig holds settings for the model catalog fetch pipeline.
type CatalogConfig struct {
	DataRoot        string
	TTL             time.Duration
	RefreshInterval time.Duration // how often the scheduler re-checks staleness
	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	Categories      []string
	Orders          []string
}

// DatabaseConfig holds database connection settings for usage records.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimitConfig holds per-user rate limit settings.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// UsageConfig holds settings for the async usage record pipeline.
type UsageConfig struct {
	Enabled      bool
	UseRedis     bool
	BatchSize    int
	BatchTimeout time.Duration
}

// LoggingSinkConfig holds configuration for the S3-based request log sink.
type LoggingSinkConfig struct {
	Enabled       bool
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	PodName       string
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvStringList(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Default dimensions of the upstream catalog. Each (category, order) pair
// maps to one cached listing file.
var (
	DefaultCategories = []string{
		"programming", "translation", "marketing", "roleplay",
		"science", "legal", "finance", "health", "academia",
	}
	DefaultOrders = []string{
		"top-weekly", "newest", "throughput-high-to-low",
		"latency-low-to-high", "pricing-low-to-high",
	}
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),
		Vault: VaultConfig{
			Address:   getEnvString("VAULT_ADDR", "http://127.0.0.1:8200"),
			Token:     getEnvString("VAULT_TOKEN", ""),
			UnsealKey: getEnvString("VAULT_UNSEAL_KEY", ""),
			Timeout:   getEnvDuration("VAULT_TIMEOUT", 10*time.Second),
		},
		Verifier: VerifierConfig{
			BackendURL: getEnvString("VERIFIER_BACKEND_URL", "http://127.0.0.1:9090"),
			Timeout:    getEnvDuration("VERIFIER_TIMEOUT", 5*time.Second),
		},
		Catalog: CatalogConfig{
			DataRoot:        getEnvString("CATALOG_DATA_ROOT", "/var/lib/llm-router/catalog"),
			TTL:             getEnvDuration("CATALOG_TTL", 12*time.Hour),
			RefreshInterval: getEnvDuration("CATALOG_REFRESH_INTERVAL", 15*time.Minute),
			UpstreamBaseURL: getEnvString("CATALOG_UPSTREAM_BASE_URL", "https://openrouter.ai"),
			UpstreamTimeout: getEnvDuration("CATALOG_UPSTREAM_TIMEOUT", 30*time.Second),
			Categories:      getEnvStringList("CATALOG_CATEGORIES", DefaultCategories),
			Orders:          getEnvStringList("CATALOG_ORDERS", DefaultOrders),
		},
		Database: DatabaseConfig{
			URL:             getEnvString("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvString("RATE_LIMIT_ENABLED", "false") == "true",
			RequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
		},
		Usage: UsageConfig{
			Enabled:      getEnvString("USAGE_ENABLED", "false") == "true",
			UseRedis:     getEnvString("USAGE_USE_REDIS", "false") == "true",
			BatchSize:    getEnvInt("USAGE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("USAGE_BATCH_TIMEOUT", 5*time.Second),
		},
		LoggingSink: LoggingSinkConfig{
			Enabled:       getEnvString("LOGGING_SINK_ENABLED", "false") == "true",
			BufferSize:    getEnvInt("LOGGING_SINK_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("LOGGING_SINK_FLUSH_SIZE", 1000),
			FlushInterval: getEnvDuration("LOGGING_SINK_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:      getEnvString("LOGGING_SINK_S3_BUCKET", ""),
			S3Region:      getEnvString("LOGGING_SINK_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("LOGGING_SINK_S3_PREFIX", "request-logs/"),
			PodName:       getEnvString("POD_NAME", "router-0"),
		},
	}

	return cfg, nil
}
