// Package config provides configuration management for the resolver.
// Settings come from built-in defaults, then an optional YAML file, then
// environment variables with the RESOLVER_ prefix; later sources win.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/scrypster/resolver/internal/engine"
	"github.com/scrypster/resolver/internal/storage/guard"
	"github.com/scrypster/resolver/internal/storage/postgres"
)

// Config holds all configuration settings for the resolver service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Resolver ResolverConfig `yaml:"resolver"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // Server port (default: 6464)
	Host            string        `yaml:"host"`             // Server host (default: 127.0.0.1)
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`   // Requests per second per client IP (default: 50)
	RateLimitBurst  int           `yaml:"rate_limit_burst"` // Burst size (default: 100)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Graceful shutdown budget (default: 10s)
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	Engine          string        `yaml:"engine"`            // sqlite or postgres (default: sqlite)
	DataPath        string        `yaml:"data_path"`         // SQLite data directory (default: ./data)
	PostgresDSN     string        `yaml:"postgres_dsn"`      // Required when engine is postgres
	MaxOpenConns    int           `yaml:"max_open_conns"`    // PostgreSQL pool size (default: 25)
	MaxIdleConns    int           `yaml:"max_idle_conns"`    // PostgreSQL idle connections (default: 5)
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"` // PostgreSQL connection lifetime (default: 5m)
}

// ResolverConfig tunes the cascade and batch fan-out.
type ResolverConfig struct {
	FuzzyAcceptance     float64       `yaml:"fuzzy_acceptance"`
	SemanticThreshold   float64       `yaml:"semantic_threshold"`
	SemanticTopK        int           `yaml:"semantic_top_k"`
	SemanticTimeout     time.Duration `yaml:"semantic_timeout"`
	SuggestThreshold    float64       `yaml:"suggest_threshold"`
	SuggestTopK         int           `yaml:"suggest_top_k"`
	BatchConcurrency    int           `yaml:"batch_concurrency"`
	SemanticConcurrency int           `yaml:"semantic_concurrency"`
}

// BreakerConfig configures the store circuit breaker.
type BreakerConfig struct {
	MaxFailures          uint32        `yaml:"max_failures"`
	OpenTimeout          time.Duration `yaml:"open_timeout"`
	HalfOpenMaxSuccesses uint32        `yaml:"half_open_max_successes"`
	LookupTimeout        time.Duration `yaml:"lookup_timeout"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: info)
	JSON  bool   `yaml:"json"`  // JSON output instead of console (default: false)
}

// Default returns the built-in configuration.
func Default() *Config {
	eng := engine.DefaultConfig()
	brk := guard.DefaultConfig()
	pool := postgres.DefaultPoolOptions()

	return &Config{
		Server: ServerConfig{
			Port:            6464,
			Host:            "127.0.0.1",
			RateLimitRPS:    50,
			RateLimitBurst:  100,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Engine:          "sqlite",
			DataPath:        "./data",
			MaxOpenConns:    pool.MaxOpenConns,
			MaxIdleConns:    pool.MaxIdleConns,
			ConnMaxLifetime: pool.ConnMaxLifetime,
		},
		Resolver: ResolverConfig{
			FuzzyAcceptance:     eng.FuzzyAcceptance,
			SemanticThreshold:   eng.SemanticThreshold,
			SemanticTopK:        eng.SemanticTopK,
			SemanticTimeout:     eng.SemanticTimeout,
			SuggestThreshold:    eng.SuggestThreshold,
			SuggestTopK:         eng.SuggestTopK,
			BatchConcurrency:    eng.BatchConcurrency,
			SemanticConcurrency: eng.SemanticConcurrency,
		},
		Breaker: BreakerConfig{
			MaxFailures:          brk.MaxFailures,
			OpenTimeout:          brk.OpenTimeout,
			HalfOpenMaxSuccesses: brk.HalfOpenMaxSuccesses,
			LookupTimeout:        brk.LookupTimeout,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the file named by RESOLVER_CONFIG (if
// any) and the environment.
func LoadConfig() (*Config, error) {
	return Load(getEnv("RESOLVER_CONFIG", ""))
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and RESOLVER_ environment variables, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	}

	applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironment overrides cfg with any RESOLVER_ variables that are set.
func applyEnvironment(cfg *Config) {
	cfg.Server.Port = getEnvInt("RESOLVER_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("RESOLVER_HOST", cfg.Server.Host)
	cfg.Server.RateLimitRPS = getEnvFloat("RESOLVER_RATE_LIMIT_RPS", cfg.Server.RateLimitRPS)
	cfg.Server.RateLimitBurst = getEnvInt("RESOLVER_RATE_LIMIT_BURST", cfg.Server.RateLimitBurst)
	cfg.Server.ShutdownTimeout = getEnvDuration("RESOLVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Storage.Engine = getEnv("RESOLVER_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("RESOLVER_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("RESOLVER_POSTGRES_DSN", cfg.Storage.PostgresDSN)
	cfg.Storage.MaxOpenConns = getEnvInt("RESOLVER_MAX_OPEN_CONNS", cfg.Storage.MaxOpenConns)
	cfg.Storage.MaxIdleConns = getEnvInt("RESOLVER_MAX_IDLE_CONNS", cfg.Storage.MaxIdleConns)
	cfg.Storage.ConnMaxLifetime = getEnvDuration("RESOLVER_CONN_MAX_LIFETIME", cfg.Storage.ConnMaxLifetime)

	cfg.Resolver.FuzzyAcceptance = getEnvFloat("RESOLVER_FUZZY_ACCEPTANCE", cfg.Resolver.FuzzyAcceptance)
	cfg.Resolver.SemanticThreshold = getEnvFloat("RESOLVER_SEMANTIC_THRESHOLD", cfg.Resolver.SemanticThreshold)
	cfg.Resolver.SemanticTopK = getEnvInt("RESOLVER_SEMANTIC_TOP_K", cfg.Resolver.SemanticTopK)
	cfg.Resolver.SemanticTimeout = getEnvDuration("RESOLVER_SEMANTIC_TIMEOUT", cfg.Resolver.SemanticTimeout)
	cfg.Resolver.SuggestThreshold = getEnvFloat("RESOLVER_SUGGEST_THRESHOLD", cfg.Resolver.SuggestThreshold)
	cfg.Resolver.SuggestTopK = getEnvInt("RESOLVER_SUGGEST_TOP_K", cfg.Resolver.SuggestTopK)
	cfg.Resolver.BatchConcurrency = getEnvInt("RESOLVER_BATCH_CONCURRENCY", cfg.Resolver.BatchConcurrency)
	cfg.Resolver.SemanticConcurrency = getEnvInt("RESOLVER_SEMANTIC_CONCURRENCY", cfg.Resolver.SemanticConcurrency)

	cfg.Breaker.MaxFailures = uint32(getEnvInt("RESOLVER_BREAKER_MAX_FAILURES", int(cfg.Breaker.MaxFailures)))
	cfg.Breaker.OpenTimeout = getEnvDuration("RESOLVER_BREAKER_OPEN_TIMEOUT", cfg.Breaker.OpenTimeout)
	cfg.Breaker.HalfOpenMaxSuccesses = uint32(getEnvInt("RESOLVER_BREAKER_HALF_OPEN_SUCCESSES", int(cfg.Breaker.HalfOpenMaxSuccesses)))
	cfg.Breaker.LookupTimeout = getEnvDuration("RESOLVER_LOOKUP_TIMEOUT", cfg.Breaker.LookupTimeout)

	cfg.Log.Level = getEnv("RESOLVER_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.JSON = getEnvBool("RESOLVER_LOG_JSON", cfg.Log.JSON)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("config: server port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		return errors.New("config: rate limit rps and burst must be positive")
	}

	switch c.Storage.Engine {
	case "sqlite":
		if c.Storage.DataPath == "" {
			return errors.New("config: storage data_path is required for sqlite")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage postgres_dsn is required for postgres")
		}
	default:
		return errors.Newf("config: unknown storage engine %q", c.Storage.Engine)
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"fuzzy_acceptance", c.Resolver.FuzzyAcceptance},
		{"semantic_threshold", c.Resolver.SemanticThreshold},
		{"suggest_threshold", c.Resolver.SuggestThreshold},
	}
	for _, th := range thresholds {
		if th.value <= 0 || th.value > 1 {
			return errors.Newf("config: resolver %s %.3f must be in (0,1]", th.name, th.value)
		}
	}
	if c.Resolver.SemanticTopK <= 0 || c.Resolver.SuggestTopK <= 0 {
		return errors.New("config: resolver top_k values must be positive")
	}
	if c.Resolver.BatchConcurrency <= 0 || c.Resolver.SemanticConcurrency <= 0 {
		return errors.New("config: resolver concurrency limits must be positive")
	}
	if c.Breaker.LookupTimeout < 0 {
		return errors.New("config: breaker lookup_timeout must not be negative")
	}
	if c.Breaker.MaxFailures == 0 {
		return errors.New("config: breaker max_failures must be positive")
	}
	return nil
}

// SQLitePath is the database file used by the sqlite engine.
func (s StorageConfig) SQLitePath() string {
	return filepath.Join(s.DataPath, "resolver.db")
}

// PoolOptions maps the PostgreSQL pool settings.
func (s StorageConfig) PoolOptions() postgres.PoolOptions {
	return postgres.PoolOptions{
		MaxOpenConns:    s.MaxOpenConns,
		MaxIdleConns:    s.MaxIdleConns,
		ConnMaxLifetime: s.ConnMaxLifetime,
	}
}

// EngineConfig maps the resolver settings to engine.Config.
func (r ResolverConfig) EngineConfig() engine.Config {
	return engine.Config{
		FuzzyAcceptance:     r.FuzzyAcceptance,
		SemanticThreshold:   r.SemanticThreshold,
		SemanticTopK:        r.SemanticTopK,
		SemanticTimeout:     r.SemanticTimeout,
		SuggestThreshold:    r.SuggestThreshold,
		SuggestTopK:         r.SuggestTopK,
		BatchConcurrency:    r.BatchConcurrency,
		SemanticConcurrency: r.SemanticConcurrency,
	}
}

// GuardConfig maps the breaker settings to guard.Config.
func (b BreakerConfig) GuardConfig() guard.Config {
	return guard.Config{
		MaxFailures:          b.MaxFailures,
		OpenTimeout:          b.OpenTimeout,
		HalfOpenMaxSuccesses: b.HalfOpenMaxSuccesses,
		LookupTimeout:        b.LookupTimeout,
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration parses values such as "250ms" or "2s".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
