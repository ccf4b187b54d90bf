// Package config loads the integrator configuration.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the integrator and the staging tool.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Integrator IntegratorConfig `yaml:"integrator"`
	Sentiment  SentimentConfig  `yaml:"sentiment"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string        `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int           `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string        `yaml:"user" env:"PGUSER" env-default:"postgres"`
	Password       string        `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string        `yaml:"database" env:"PGDATABASE" env-default:"market_sentiment"`
	SSLMode        string        `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32         `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"5"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"PGCONNECT_TIMEOUT" env-default:"10s"`
}

// DSN returns the connection URL.
func (d DatabaseConfig) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Database,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// ClickHouseConfig holds the optional analytics mirror configuration.
type ClickHouseConfig struct {
	// DSN is secret-bearing, so env only. Empty disables the mirror.
	DSN string `yaml:"-" env:"CLICKHOUSE_DSN"`
}

// Enabled returns true if the analytics mirror is configured.
func (c ClickHouseConfig) Enabled() bool {
	return c.DSN != ""
}

// IntegratorConfig tunes integration runs.
type IntegratorConfig struct {
	BatchSize      int           `yaml:"batch_size" env:"INTEGRATOR_BATCH_SIZE" env-default:"1000"`
	FlushEvery     int           `yaml:"flush_every" env:"INTEGRATOR_FLUSH_EVERY" env-default:"100"`
	LockKey        int64         `yaml:"lock_key" env:"INTEGRATOR_LOCK_KEY" env-default:"7172972"`
	FetchRetryTime time.Duration `yaml:"fetch_retry_time" env:"INTEGRATOR_FETCH_RETRY_TIME" env-default:"30s"`
	RunTimeout     time.Duration `yaml:"run_timeout" env:"INTEGRATOR_RUN_TIMEOUT" env-default:"30m"`
}

// SentimentConfig holds the optional model scorer configuration.
type SentimentConfig struct {
	Endpoint string `yaml:"endpoint" env:"SENTIMENT_ENDPOINT" env-default:""`
	Model    string `yaml:"model" env:"SENTIMENT_MODEL" env-default:""`
	APIKey   string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
}

// Enabled returns true if a scoring model is configured.
func (c SentimentConfig) Enabled() bool {
	return c.Model != ""
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	// Addr is the listen address of /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr" env:"METRICS_ADDR" env-default:""`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Load reads configuration from the YAML file at path with environment
// variable overrides. An empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	// The run lock pins one pooled connection for the whole run.
	if c.Database.MaxConnections < 2 {
		return fmt.Errorf("database.max_connections must be at least 2, got %d", c.Database.MaxConnections)
	}
	if c.Integrator.BatchSize <= 0 {
		return fmt.Errorf("integrator.batch_size must be positive, got %d", c.Integrator.BatchSize)
	}
	if c.Integrator.FlushEvery <= 0 {
		return fmt.Errorf("integrator.flush_every must be positive, got %d", c.Integrator.FlushEvery)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}
