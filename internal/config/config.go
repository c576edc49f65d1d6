// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage backends, auth, notification channels, rate limiting and
// observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DBConfig selects the SQL database behind the "sql" KV backend and the
// idempotency table.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres|mysql
	Path   string // DB_PATH (sqlite file)
	DSN    string // DB_DSN (postgres/mysql)
}

// RedisConfig is shared by the "redis" KV backend and the change relay.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EventsConfig controls cross-process change relaying.
type EventsConfig struct {
	RedisEnabled bool   // EVENTS_REDIS_ENABLED
	Channel      string // EVENTS_CHANNEL
}

// AMQPConfig enables the RabbitMQ notification publisher when URL is set.
type AMQPConfig struct {
	URL   string
	Queue string
}

// AuthConfig holds token signing settings and the seeded admin account.
type AuthConfig struct {
	JWTSecret     string
	JWTTTL        time.Duration
	AdminEmail    string
	AdminPassword string
	AdminName     string
	// DemoHeaders trusts X-User-ID / X-User-Role when no token is sent.
	DemoHeaders bool
}

// CORSConfig lists the browser origins allowed to call the API. Empty allows any.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig toggles Strict-Transport-Security.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures span export over OTLP/gRPC.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the collector
	Insecure    bool   // plaintext gRPC
	ServiceName string
	SampleRatio float64 // root-span sampling, 0..1
}

// Config is the full runtime configuration of the query tracker.
type Config struct {
	// HTTP server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string
	ShutdownTimeout   time.Duration

	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string // always starts with "/", no trailing slash

	// Storage
	DB        DBConfig
	KVBackend string // sql|redis|memory
	Redis     RedisConfig
	Events    EventsConfig

	// Notifications / auth
	AMQP AMQPConfig
	Auth AuthConfig

	// Queries
	Timezone      string        // IANA name or "Local"; defines "today"
	ViewCacheSize int           // filtered list views kept (0 disables)
	ViewCacheTTL  time.Duration // lifetime of a cached view

	// Per-client token bucket; RateRPS 0 disables limiting.
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	// Replay window for Idempotency-Key.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad is Load for callers that cannot continue without configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds a Config from the environment. Unset or malformed values take
// their defaults; values that are set but out of range produce an error.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "quetras.db"),
			DSN:    getenv("DB_DSN", ""),
		},
		KVBackend: strings.ToLower(getenv("KV_BACKEND", "sql")),
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},
		Events: EventsConfig{
			RedisEnabled: getbool("EVENTS_REDIS_ENABLED", false),
			Channel:      getenv("EVENTS_CHANNEL", "quetras:changes"),
		},

		// Notifications / auth
		AMQP: AMQPConfig{
			URL:   getenv("AMQP_URL", ""),
			Queue: getenv("AMQP_QUEUE", "quetras.notifications"),
		},
		Auth: AuthConfig{
			JWTSecret:     getenv("JWT_SECRET", "dev-secret-change-me"),
			JWTTTL:        getdur("JWT_TTL", 24*time.Hour),
			AdminEmail:    getenv("ADMIN_EMAIL", "admin@quetras.com"),
			AdminPassword: getenv("ADMIN_PASSWORD", "admin123"),
			AdminName:     getenv("ADMIN_NAME", "Admin User"),
			DemoHeaders:   getbool("AUTH_DEMO_HEADERS", false),
		},

		// Queries
		Timezone:      getenv("TIMEZONE", "Local"),
		ViewCacheSize: getint("VIEW_CACHE_SIZE", 256),
		ViewCacheTTL:  getdur("VIEW_CACHE_TTL", 30*time.Second),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Tracing
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "quetras-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// Accept common aliases before validating.
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres", "mysql":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, fmt.Errorf("DB_DSN is required for DB_DRIVER=%s", cfg.DB.Driver)
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres, mysql")
	}
	switch cfg.KVBackend {
	case "sql", "redis", "memory":
	default:
		return cfg, errors.New("KV_BACKEND must be one of: sql, redis, memory")
	}
	if (cfg.KVBackend == "redis" || cfg.Events.RedisEnabled) && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return cfg, errors.New("REDIS_ADDR must not be empty when redis is used")
	}
	if cfg.Events.RedisEnabled && strings.TrimSpace(cfg.Events.Channel) == "" {
		return cfg, errors.New("EVENTS_CHANNEL must not be empty")
	}
	if cfg.AMQP.URL != "" && strings.TrimSpace(cfg.AMQP.Queue) == "" {
		return cfg, errors.New("AMQP_QUEUE must not be empty")
	}
	if len(cfg.Auth.JWTSecret) < 8 {
		return cfg, errors.New("JWT_SECRET must be at least 8 characters")
	}
	if cfg.Auth.JWTTTL <= 0 {
		return cfg, errors.New("JWT_TTL must be > 0")
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, fmt.Errorf("TIMEZONE: %w", err)
	}
	if cfg.ViewCacheSize < 0 {
		return cfg, errors.New("VIEW_CACHE_SIZE must be >= 0")
	}
	if cfg.ViewCacheTTL <= 0 {
		return cfg, errors.New("VIEW_CACHE_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// Location resolves Timezone. "Local" (or empty) is the host zone.
func (c Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// splitCSV returns the non-blank comma-separated entries of s, or nil.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
