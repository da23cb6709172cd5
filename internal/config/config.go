package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/geb2701/storefront/pkg/config"
	"github.com/geb2701/storefront/pkg/database"
	"github.com/geb2701/storefront/pkg/httpclient"
	"github.com/geb2701/storefront/pkg/middleware"
)

// Persistence backends for cart state.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Catalog sources.
const (
	CatalogMemory = "memory"
	CatalogHTTP   = "http"
)

// Config holds all configuration for the storefront server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	RequestTimeout int `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`

	// Currency symbol prefixed to every formatted amount.
	CurrencySymbol string `env:"CURRENCY_SYMBOL" envDefault:"$"`

	// Cart state persistence: memory, redis or postgres.
	StateBackend string `env:"STATE_BACKEND" envDefault:"memory"`
	// State TTL in hours (default: 7 days)
	StateTTLHours int `env:"STATE_TTL_HOURS" envDefault:"168"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB   string `env:"STOREFRONT_DB_NAME" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"1"`

	// Expired state rows are purged on this interval (postgres only).
	PurgeIntervalMins int `env:"STATE_PURGE_INTERVAL_MINUTES" envDefault:"30"`

	// Product catalog: memory (bundled seed) or http (backend API).
	CatalogSource string `env:"CATALOG_SOURCE" envDefault:"memory"`
	APIBaseURL    string `env:"API_BASE_URL" envDefault:"http://localhost:8080/api"`
	// Catalog responses are cacheable by browsers for this many seconds.
	CatalogCacheSeconds int `env:"CATALOG_CACHE_SECONDS" envDefault:"60"`

	// Backend HTTP client
	HTTPClientTimeout int    `env:"HTTP_CLIENT_TIMEOUT_SECONDS" envDefault:"15"`
	HTTPClientRetries int    `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"2"`
	APIToken          string `env:"API_TOKEN" envDefault:""`

	// Circuit breaker settings for backend calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Sessions idle longer than this are dropped from memory.
	SessionIdleMins int `env:"SESSION_IDLE_MINUTES" envDefault:"30"`

	// Toasts kept per session until the UI drains them.
	NotificationFeedSize int `env:"NOTIFICATION_FEED_SIZE" envDefault:"20"`

	// Per-session throttle on cart and checkout calls. Zero RPS disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	OTELInsecure   bool    `env:"OTEL_INSECURE" envDefault:"true"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StateBackend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("STATE_BACKEND must be one of memory, redis, postgres, got %q", c.StateBackend)
	}
	switch c.CatalogSource {
	case CatalogMemory:
	case CatalogHTTP:
		if _, err := url.ParseRequestURI(c.APIBaseURL); err != nil {
			return fmt.Errorf("invalid API_BASE_URL %q: %w", c.APIBaseURL, err)
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE must be memory or http, got %q", c.CatalogSource)
	}
	if c.StateTTLHours < 1 {
		return fmt.Errorf("STATE_TTL_HOURS must be positive, got %d", c.StateTTLHours)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when RATE_LIMIT_RPS is set, got %d", c.RateLimitBurst)
	}
	return nil
}

// RateLimitConfig returns the per-session throttle. Buckets are kept as long
// as the session itself.
func (c *Config) RateLimitConfig() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RPS:     c.RateLimitRPS,
		Burst:   c.RateLimitBurst,
		IdleTTL: c.SessionIdle(),
	}
}

// StateTTL returns how long persisted carts live without a write.
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.StateTTLHours) * time.Hour
}

// SessionIdle returns how long an untouched session stays cached.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMins) * time.Minute
}

// PostgresConfig returns the pool settings for the state store.
func (c *Config) PostgresConfig() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.DBMaxConns
	pg.MinConns = c.DBMinConns
	return pg
}

// RedisConfig returns the client settings for the state store.
func (c *Config) RedisConfig() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Addr = c.RedisAddr
	rc.Password = c.RedisPass
	rc.DB = c.RedisDB
	return rc
}

// HTTPClientConfig returns the settings of the backend API client.
func (c *Config) HTTPClientConfig() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = time.Duration(c.HTTPClientTimeout) * time.Second
	hc.MaxRetries = c.HTTPClientRetries
	hc.BearerToken = c.APIToken
	return hc
}

// CircuitBreakerConfig returns the breaker settings for one backend client.
func (c *Config) CircuitBreakerConfig(name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  c.CBMaxRequests,
		Interval:     time.Duration(c.CBInterval) * time.Second,
		Timeout:      time.Duration(c.CBTimeout) * time.Second,
		FailureRatio: c.CBFailureRatio,
		MinRequests:  c.CBMinRequests,
	}
}
