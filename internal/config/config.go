// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Identity      IdentityConfig      `yaml:"identity"`
	Backend       BackendConfig       `yaml:"backend"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Cache         CacheConfig         `yaml:"cache"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency"`
	Toasts        ToastConfig         `yaml:"toasts"`
	TestIndicator TestIndicatorConfig `yaml:"test_indicator"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// IdentityConfig describes how BFF callers are authenticated. Tokens are
// HS256 JWTs signed with Secret. An empty Secret disables authentication.
type IdentityConfig struct {
	Secret     string   `yaml:"secret"`
	Issuer     string   `yaml:"issuer"`
	Algorithms []string `yaml:"algorithms"`
	CookieName string   `yaml:"cookie_name"`
}

// BackendConfig describes the autobrr REST API.
type BackendConfig struct {
	BaseURL        string               `yaml:"base_url"`
	APIToken       string               `yaml:"api_token"`
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          RetryConfig          `yaml:"retry"`
}

// CircuitBreakerConfig describes circuit breaker settings for the backend.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// RetryConfig describes retry settings for reads. Mutations are never retried.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
}

// SessionsConfig describes form session storage.
type SessionsConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	DSNEnv          string        `yaml:"dsn_env"`
	TTL             time.Duration `yaml:"ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig describes the shared query cache.
type CacheConfig struct {
	Driver     string        `yaml:"driver"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig describes a redis connection.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	AddrEnv string `yaml:"addr_env"`
	DB      int    `yaml:"db"`
	Prefix  string `yaml:"prefix"`
}

// IdempotencyConfig describes idempotency store settings for submits.
type IdempotencyConfig struct {
	Enabled bool          `yaml:"enabled"`
	Driver  string        `yaml:"driver"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// ToastConfig describes the notification feed.
type ToastConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// TestIndicatorConfig describes how long the test button shows each state.
type TestIndicatorConfig struct {
	SuccessDelay time.Duration `yaml:"success_delay"`
	SuccessHold  time.Duration `yaml:"success_hold"`
	FailureHold  time.Duration `yaml:"failure_hold"`
}

// RateLimitConfig limits connectivity tests per session.
type RateLimitConfig struct {
	TestsPerMinute float64 `yaml:"tests_per_minute"`
	Burst          int     `yaml:"burst"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            7475,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type",
					"X-Correlation-Id", "X-Idempotency-Key"},
				MaxAge: 86400,
			},
		},
		Identity: IdentityConfig{
			Algorithms: []string{"HS256"},
			CookieName: "user_session",
		},
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:7474",
			Timeout: 15 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:       3,
				BackoffInitial:    100 * time.Millisecond,
				BackoffMultiplier: 2,
				BackoffMax:        2 * time.Second,
			},
		},
		Sessions: SessionsConfig{
			Driver:          "memory",
			TTL:             2 * time.Hour,
			SweepInterval:   time.Minute,
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        5 * time.Minute,
			MaxEntries: 1000,
			Redis:      RedisConfig{Prefix: "autobrr:bff:cache:"},
		},
		Idempotency: IdempotencyConfig{
			Enabled: true,
			Driver:  "memory",
			TTL:     10 * time.Minute,
		},
		Toasts: ToastConfig{
			Capacity: 100,
			TTL:      time.Minute,
		},
		TestIndicator: TestIndicatorConfig{
			SuccessDelay: time.Second,
			SuccessHold:  2500 * time.Millisecond,
			FailureHold:  2500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			TestsPerMinute: 12,
			Burst:          3,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Backend.BaseURL == "" {
		errs = append(errs, "backend.base_url is required")
	}
	if c.Backend.APIToken == "" {
		errs = append(errs, "backend.api_token is required")
	}

	switch c.Sessions.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Sessions.ResolveDSN() == "" {
			errs = append(errs, fmt.Sprintf("sessions.dsn is required for driver %q", c.Sessions.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("sessions.driver %q is not supported (memory, postgres, sqlite)", c.Sessions.Driver))
	}
	if c.Sessions.TTL <= 0 {
		errs = append(errs, "sessions.ttl must be positive")
	}

	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if c.Cache.Redis.ResolveAddr() == "" {
			errs = append(errs, "cache.redis.addr is required for driver \"redis\"")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not supported (memory, redis)", c.Cache.Driver))
	}

	if c.Idempotency.Enabled {
		switch c.Idempotency.Driver {
		case "memory":
		case "redis":
			if c.Idempotency.Redis.ResolveAddr() == "" {
				errs = append(errs, "idempotency.redis.addr is required for driver \"redis\"")
			}
		default:
			errs = append(errs, fmt.Sprintf("idempotency.driver %q is not supported (memory, redis)", c.Idempotency.Driver))
		}
	}

	if c.Identity.Secret != "" && len(c.Identity.Secret) < 16 {
		errs = append(errs, "identity.secret must be at least 16 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// ResolveDSN returns DSN, falling back to the environment variable named by
// DSNEnv.
func (s SessionsConfig) ResolveDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	if s.DSNEnv != "" {
		return os.Getenv(s.DSNEnv)
	}
	return ""
}

// ResolveAddr returns Addr, falling back to the environment variable named by
// AddrEnv.
func (r RedisConfig) ResolveAddr() string {
	if r.Addr != "" {
		return r.Addr
	}
	if r.AddrEnv != "" {
		return os.Getenv(r.AddrEnv)
	}
	return ""
}

// applyEnvOverrides reads AUTOBRR_BFF_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTOBRR_BFF_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AUTOBRR_BFF_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("AUTOBRR_BFF_BACKEND_API_TOKEN"); v != "" {
		cfg.Backend.APIToken = v
	}
	if v := os.Getenv("AUTOBRR_BFF_IDENTITY_SECRET"); v != "" {
		cfg.Identity.Secret = v
	}
	if v := os.Getenv("AUTOBRR_BFF_SESSIONS_DRIVER"); v != "" {
		cfg.Sessions.Driver = v
	}
	if v := os.Getenv("AUTOBRR_BFF_CACHE_DRIVER"); v != "" {
		cfg.Cache.Driver = v
	}
	if v := os.Getenv("AUTOBRR_BFF_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
